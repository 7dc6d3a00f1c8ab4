package token

import (
	"context"
	"errors"
	"time"

	"github.com/portway-io/portway/internal/logger"
)

// Lockout policy for the management passphrase.
const (
	// maxPassphraseFailures is the number of consecutive failures that
	// triggers a lockout.
	maxPassphraseFailures = 5

	// lockoutDuration is how long the management record stays locked.
	lockoutDuration = 15 * time.Minute
)

// SetPassphrase creates or replaces the management passphrase without
// checking the previous one. Intended for first-time setup; use
// ChangePassphrase once a passphrase exists.
func (s *Service) SetPassphrase(ctx context.Context, passphrase string) error {
	hash, salt, err := HashPassphrase(passphrase)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &ManagementRecord{
		PassphraseHash: hash,
		Salt:           salt,
	}
	return s.store.SaveManagementRecord(ctx, rec)
}

// HasPassphrase reports whether a management passphrase has been set.
func (s *Service) HasPassphrase(ctx context.Context) (bool, error) {
	_, err := s.store.GetManagementRecord(ctx)
	if errors.Is(err, ErrPassphraseNotSet) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// VerifyPassphrase checks the management passphrase against the stored
// record, driving the lockout state machine: five consecutive failures lock
// the record for fifteen minutes, during which even the correct passphrase is
// rejected with ErrManagementLocked. The record is re-read under the lock so
// concurrent verifiers cannot bypass the counters.
func (s *Service) VerifyPassphrase(ctx context.Context, passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.GetManagementRecord(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if rec.LockedAt(now) {
		return ErrManagementLocked
	}

	// An expired lock resets the failure streak.
	if rec.LockedUntil != nil {
		rec.LockedUntil = nil
		rec.FailedAttempts = 0
	}

	if MatchPassphrase(passphrase, rec.PassphraseHash, rec.Salt) {
		if rec.FailedAttempts > 0 || rec.LastFailedAt != nil {
			rec.FailedAttempts = 0
			rec.LastFailedAt = nil
			rec.LockedUntil = nil
			if err := s.store.SaveManagementRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}

	rec.FailedAttempts++
	rec.LastFailedAt = &now
	if rec.FailedAttempts >= maxPassphraseFailures {
		locked := now.Add(lockoutDuration)
		rec.LockedUntil = &locked
		logger.WarnCtx(ctx, "management record locked",
			"failed_attempts", rec.FailedAttempts,
			"locked_until", locked)
	}
	if err := s.store.SaveManagementRecord(ctx, rec); err != nil {
		return err
	}
	return ErrInvalidPassphrase
}

// ChangePassphrase verifies the current passphrase, then replaces it with a
// fresh salt and hash. The failure counters reset on success.
func (s *Service) ChangePassphrase(ctx context.Context, current, next string) error {
	if err := s.VerifyPassphrase(ctx, current); err != nil {
		return err
	}

	hash, salt, err := HashPassphrase(next)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &ManagementRecord{
		PassphraseHash: hash,
		Salt:           salt,
	}
	if err := s.store.SaveManagementRecord(ctx, rec); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "management passphrase changed")
	return nil
}
