package obligation

import (
	"context"
	"errors"
	"time"

	"github.com/agency/backend/internal/domain/shared"
)

// DefaultCommissionHorizonMonths bounds commission backfill of open-ended contracts
const DefaultCommissionHorizonMonths = 12

// Settings tunes the engine services
type Settings struct {
	// CommissionHorizonMonths is how many months ahead commissions are
	// generated for contracts without an end date
	CommissionHorizonMonths int
	// Now returns the current time; defaults to time.Now
	Now func() time.Time
}

// DefaultSettings returns the default engine settings
func DefaultSettings() Settings {
	return Settings{
		CommissionHorizonMonths: DefaultCommissionHorizonMonths,
		Now:                     time.Now,
	}
}

func (s Settings) withDefaults() Settings {
	if s.CommissionHorizonMonths <= 0 {
		s.CommissionHorizonMonths = DefaultCommissionHorizonMonths
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

func (s Settings) now() time.Time {
	return s.Now().UTC()
}

// storeErr classifies an error returned by a repository: domain errors pass
// through, anything else is a transient store failure
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return shared.NewTransientStoreError(op, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
