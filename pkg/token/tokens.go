package token

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// managementRecordID is the fixed primary key of the single management row.
const managementRecordID = 1

// CreateToken persists a new token record, generating an ID if absent.
func (s *Store) CreateToken(ctx context.Context, t *AuthToken) (string, error) {
	return createWithID(s.db, ctx, t, func(rec *AuthToken, id string) { rec.ID = id }, t.ID, ErrDuplicateToken)
}

// GetToken retrieves a token record by ID.
func (s *Store) GetToken(ctx context.Context, id string) (*AuthToken, error) {
	return getByField[AuthToken](s.db, ctx, "id", id, ErrTokenNotFound)
}

// ListTokens retrieves all token records, oldest first.
func (s *Store) ListTokens(ctx context.Context) ([]*AuthToken, error) {
	var tokens []*AuthToken
	if err := s.db.WithContext(ctx).Order("created_at").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// ListActiveTokens retrieves the records that are active as of the given
// instant: not revoked and not expired. Verification iterates this set.
func (s *Store) ListActiveTokens(ctx context.Context, asOf time.Time) ([]*AuthToken, error) {
	var tokens []*AuthToken
	err := s.db.WithContext(ctx).
		Where("revoked_at IS NULL").
		Where("expires_at IS NULL OR expires_at > ?", asOf).
		Order("created_at").
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// UpdateToken applies a partial update to a token record.
// Returns ErrTokenNotFound if the record does not exist.
func (s *Store) UpdateToken(ctx context.Context, id string, fields map[string]any) error {
	return updateByID[AuthToken](s.db, ctx, id, fields, ErrTokenNotFound)
}

// ReplaceToken revokes the old record and inserts its replacement in a single
// transaction, so a rotation never leaves both or neither token usable.
func (s *Store) ReplaceToken(ctx context.Context, oldID string, fresh *AuthToken, revokedAt time.Time) (string, error) {
	var newID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&AuthToken{}).Where("id = ?", oldID).Update("revoked_at", revokedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTokenNotFound
		}

		id, err := createWithID(tx, ctx, fresh, func(rec *AuthToken, id string) { rec.ID = id }, fresh.ID, ErrDuplicateToken)
		if err != nil {
			return err
		}
		newID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// GetManagementRecord retrieves the single management row.
// Returns ErrPassphraseNotSet when the row has not been created yet.
func (s *Store) GetManagementRecord(ctx context.Context) (*ManagementRecord, error) {
	return getByField[ManagementRecord](s.db, ctx, "id", managementRecordID, ErrPassphraseNotSet)
}

// SaveManagementRecord creates or replaces the single management row.
func (s *Store) SaveManagementRecord(ctx context.Context, rec *ManagementRecord) error {
	rec.ID = managementRecordID
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("failed to save management record: %w", err)
	}
	return nil
}
