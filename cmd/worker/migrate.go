package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/center-hub/center-hub/internal/infrastructure/persistence/postgres"
)

var errHelp = errors.New("help provided")

// schemaMigrator - операции со схемой, доступные из командной строки.
type schemaMigrator interface {
	Migrate(ctx context.Context) error
	Rollback(ctx context.Context) (*postgres.Migration, error)
	Status(ctx context.Context) ([]postgres.Migration, error)
}

// migrateCLI обслуживает `worker migrate up|down|status`.
type migrateCLI struct {
	migrator schemaMigrator
	out      io.Writer
}

func (cli *migrateCLI) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate status          - list migrations and when they were applied")
	fmt.Fprintln(cli.out, "  migrate up              - apply pending migrations")
	fmt.Fprintln(cli.out, "  migrate down [-steps N] - revert the latest N migrations (default 1)")
}

// run принимает аргументы после слова migrate.
func (cli *migrateCLI) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	downCmd := flag.NewFlagSet("down", flag.ContinueOnError)
	downCmd.SetOutput(cli.out)
	steps := downCmd.Int("steps", 1, "number of migrations to revert")

	switch args[0] {
	case "status":
		return cli.status(ctx)

	case "up":
		if err := cli.migrator.Migrate(ctx); err != nil {
			return err
		}
		return cli.status(ctx)

	case "down":
		if err := downCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *steps < 1 {
			downCmd.Usage()
			return errHelp
		}
		for i := 0; i < *steps; i++ {
			mig, err := cli.migrator.Rollback(ctx)
			if err != nil {
				return err
			}
			if mig == nil {
				fmt.Fprintln(cli.out, "nothing to roll back")
				break
			}
			fmt.Fprintf(cli.out, "rolled back %03d %s\n", mig.Version, mig.Name)
		}
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *migrateCLI) status(ctx context.Context) error {
	list, err := cli.migrator.Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, mig := range list {
		applied := "pending"
		if mig.IsApplied() {
			applied = mig.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%03d\t%s\t%s\n", mig.Version, mig.Name, applied)
	}
	return w.Flush()
}
