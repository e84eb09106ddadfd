package shared

import "context"

// Collection keys of the snapshot store.
const (
	KeyStudents     = "students"
	KeyGroups       = "groups"
	KeyCourses      = "courses"
	KeyExams        = "exams"
	KeyAttendance   = "attendance"
	KeyTransactions = "transactions"
)

// SnapshotStore is the key-value store holding whole collections.
// Writes always replace the full collection, never a partial patch.
type SnapshotStore interface {
	// Load decodes the value under key into dest. found is false when the key is absent;
	// dest is left untouched in that case.
	Load(ctx context.Context, key string, dest any) (found bool, err error)

	// Save replaces the value under key.
	Save(ctx context.Context, key string, value any) error
}

// Get returns the collection stored under key, or def when absent.
func Get[T any](ctx context.Context, s SnapshotStore, key string, def T) (T, error) {
	var v T
	found, err := s.Load(ctx, key, &v)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

// Put replaces the collection stored under key.
func Put[T any](ctx context.Context, s SnapshotStore, key string, value T) error {
	return s.Save(ctx, key, value)
}
