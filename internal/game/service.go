package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// EmpireStore is the narrow persistence contract the empire service
// needs. Updates are conditional on the version loaded, so lost races
// surface as ErrVersionConflict instead of silent overwrites.
type EmpireStore interface {
	EmpireByPlayer(ctx context.Context, playerID string) (*Empire, error)
	InsertEmpire(ctx context.Context, e *Empire) error
	UpdateEmpire(ctx context.Context, e *Empire, expectedVersion int64) error
}

type EmpireService struct {
	store   EmpireStore
	catalog []SynergyDef
	log     *slog.Logger
	clock   Clock
}

func NewEmpireService(store EmpireStore, catalog []SynergyDef, logger *slog.Logger, clock Clock) *EmpireService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &EmpireService{store: store, catalog: catalog, log: logger, clock: clock}
}

// Catalog returns the synergy catalog the service was built with.
func (s *EmpireService) Catalog() []SynergyDef {
	out := make([]SynergyDef, len(s.catalog))
	copy(out, s.catalog)
	return out
}

func (s *EmpireService) Create(ctx context.Context, playerID, name string) (*Empire, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrInvalidArgument)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Empire"
	}
	if err := validateEntityName(name); err != nil {
		return nil, err
	}
	e := NewEmpire(playerID, name, s.clock())
	if err := s.store.InsertEmpire(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EmpireService) Get(ctx context.Context, playerID string) (*Empire, error) {
	return s.store.EmpireByPlayer(ctx, playerID)
}

func (s *EmpireService) AddCompany(ctx context.Context, in AddCompanyInput) (*Empire, error) {
	industry, err := ParseIndustry(in.Industry)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.CompanyID) == "" {
		return nil, fmt.Errorf("%w: company id is required", ErrInvalidArgument)
	}
	if err := validateEntityName(in.Name); err != nil {
		return nil, err
	}
	if in.Level < 1 {
		return nil, fmt.Errorf("%w: company level must be >= 1", ErrInvalidArgument)
	}
	if in.RevenueMicros < 0 || in.ValueMicros < 0 {
		return nil, fmt.Errorf("%w: revenue and value must be >= 0", ErrInvalidArgument)
	}
	company := Company{
		ID:            strings.TrimSpace(in.CompanyID),
		Name:          strings.TrimSpace(in.Name),
		Industry:      industry,
		Level:         in.Level,
		RevenueMicros: in.RevenueMicros,
		ValueMicros:   in.ValueMicros,
	}
	return s.mutate(ctx, in.PlayerID, func(e *Empire, now time.Time) error {
		return e.AddCompany(company, s.catalog, now)
	})
}

func (s *EmpireService) RemoveCompany(ctx context.Context, playerID, companyID string) (*Empire, error) {
	return s.mutate(ctx, playerID, func(e *Empire, now time.Time) error {
		return e.RemoveCompany(companyID, s.catalog, now)
	})
}

func (s *EmpireService) UpdateCompanyStats(ctx context.Context, in UpdateCompanyInput) (*Empire, error) {
	return s.mutate(ctx, in.PlayerID, func(e *Empire, now time.Time) error {
		return e.UpdateCompanyStats(in, now)
	})
}

func (s *EmpireService) SetHeadquarters(ctx context.Context, playerID, companyID string) (*Empire, error) {
	return s.mutate(ctx, playerID, func(e *Empire, _ time.Time) error {
		return e.SetHeadquarters(companyID)
	})
}

func (s *EmpireService) AddXP(ctx context.Context, playerID string, amount int64) (XPResult, error) {
	var out XPResult
	_, err := s.mutate(ctx, playerID, func(e *Empire, _ time.Time) error {
		leveled, level, err := e.AddXP(amount)
		if err != nil {
			return err
		}
		out = XPResult{LeveledUp: leveled, Level: level, LevelName: LevelName(level), XP: e.XP}
		return nil
	})
	if err != nil {
		return XPResult{}, err
	}
	return out, nil
}

// Recalculate runs a recompute-only save. The flow scheduler uses it to
// refresh an empire after one of its flows executed.
func (s *EmpireService) Recalculate(ctx context.Context, playerID string) (*Empire, error) {
	return s.mutate(ctx, playerID, func(e *Empire, now time.Time) error {
		e.Recompute(now)
		return nil
	})
}

const (
	mutateMaxAttempts = 5
	mutateRetryDelay  = 50 * time.Millisecond
	mutateMaxDelay    = 800 * time.Millisecond
)

// mutate is the single-writer discipline for empire records: load, apply
// the logical operation on the copy, save conditionally on the loaded
// version. A lost race is retried by reloading and re-applying, never by
// replaying the stale in-memory mutation. Everything the operation did
// is persisted in one save, or not at all.
func (s *EmpireService) mutate(ctx context.Context, playerID string, apply func(e *Empire, now time.Time) error) (*Empire, error) {
	retryDelay := mutateRetryDelay
	for attempt := 0; ; attempt++ {
		e, err := s.store.EmpireByPlayer(ctx, playerID)
		if err != nil {
			return nil, err
		}
		loaded := e.Version
		now := s.clock()
		if err := apply(e, now); err != nil {
			return nil, err
		}
		e.UpdatedAt = now

		err = s.store.UpdateEmpire(ctx, e, loaded)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		if attempt == mutateMaxAttempts-1 {
			return nil, err
		}
		s.log.Warn("empire write conflict, retrying", "player_id", playerID, "attempt", attempt+1)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return nil, err
		}
		if retryDelay < mutateMaxDelay {
			retryDelay *= 2
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
