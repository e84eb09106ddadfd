package student

import (
	"context"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Хранилище отдаёт и принимает коллекцию учеников целиком.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над коллекцией учеников.
type Repository interface {
	// List возвращает всех учеников. Пустая коллекция, если ключа нет.
	List(ctx context.Context) ([]Student, error)

	// Get возвращает ученика по ID.
	// Возвращает shared.ErrStudentNotFound, если ученик не найден.
	Get(ctx context.Context, id string) (Student, error)

	// ReplaceAll сохраняет коллекцию целиком.
	ReplaceAll(ctx context.Context, list []Student) error
}

// storeRepository - Repository поверх shared.SnapshotStore.
type storeRepository struct {
	store shared.SnapshotStore
}

// NewRepository создаёт репозиторий учеников поверх хранилища снимков.
func NewRepository(store shared.SnapshotStore) Repository {
	return &storeRepository{store: store}
}

func (r *storeRepository) List(ctx context.Context) ([]Student, error) {
	list, err := shared.Get(ctx, r.store, shared.KeyStudents, []Student{})
	if err != nil {
		return nil, shared.WrapError("student", "List", shared.ErrStorage, "load students", err)
	}
	for i := range list {
		list[i].Normalize()
	}
	return list, nil
}

func (r *storeRepository) Get(ctx context.Context, id string) (Student, error) {
	list, err := r.List(ctx)
	if err != nil {
		return Student{}, err
	}
	i := Find(list, id)
	if i < 0 {
		return Student{}, shared.ErrStudentNotFound
	}
	return list[i], nil
}

func (r *storeRepository) ReplaceAll(ctx context.Context, list []Student) error {
	if list == nil {
		list = []Student{}
	}
	if err := shared.Put(ctx, r.store, shared.KeyStudents, list); err != nil {
		return shared.WrapError("student", "ReplaceAll", shared.ErrStorage, "save students", err)
	}
	return nil
}
