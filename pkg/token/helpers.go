package token

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Generic GORM helpers shared by the store methods. They are unexported and
// operate on the raw *gorm.DB so they stay decoupled from Store itself. Each
// one handles context propagation, not-found conversion and unique constraint
// detection the same way.

// getByField retrieves a single record of type T by matching field=value,
// converting gorm.ErrRecordNotFound to the provided notFoundErr.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// createWithID generates a UUID for the entity if it has no ID, then creates
// it in the database. The idSetter callback sets the generated ID on the
// entity. Unique constraint violations are converted to dupErr.
func createWithID[T any](db *gorm.DB, ctx context.Context, entity *T, idSetter func(*T, string), currentID string, dupErr error) (string, error) {
	id := currentID
	if id == "" {
		id = uuid.New().String()
		idSetter(entity, id)
	}
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", dupErr
		}
		return "", err
	}
	return id, nil
}

// updateByID applies a partial update to the record of type T with the given
// ID. Returns notFoundErr if no rows were affected.
func updateByID[T any](db *gorm.DB, ctx context.Context, id string, fields map[string]any, notFoundErr error) error {
	var zero T
	result := db.WithContext(ctx).Model(&zero).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFoundErr
	}
	return nil
}
