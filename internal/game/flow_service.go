package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// FlowStore is the persistence contract for resource flows. DueFlows
// powers the scheduler sweep; UpdateFlow is conditional on the loaded
// version so two workers cannot both advance the same flow.
type FlowStore interface {
	InsertFlow(ctx context.Context, f *Flow) error
	FlowByID(ctx context.Context, id string) (*Flow, error)
	FlowsByPlayer(ctx context.Context, playerID string) ([]*Flow, error)
	DueFlows(ctx context.Context, now time.Time, limit int) ([]*Flow, error)
	UpdateFlow(ctx context.Context, f *Flow, expectedVersion int64) error
}

type FlowService struct {
	flows   FlowStore
	empires EmpireStore
	log     *slog.Logger
	clock   Clock
}

func NewFlowService(flows FlowStore, empires EmpireStore, logger *slog.Logger, clock Clock) *FlowService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &FlowService{flows: flows, empires: empires, log: logger, clock: clock}
}

// Create builds and stores a flow between two members of the player's
// empire. Endpoint names and industries are pinned at creation so the
// scheduler never needs the empire record.
func (s *FlowService) Create(ctx context.Context, in CreateFlowInput) (*Flow, error) {
	resource, err := ParseResourceKind(in.Resource)
	if err != nil {
		return nil, err
	}
	freq, err := ParseFrequency(in.Frequency)
	if err != nil {
		return nil, err
	}
	e, err := s.empires.EmpireByPlayer(ctx, in.PlayerID)
	if err != nil {
		return nil, err
	}
	source, err := endpointFor(e, in.SourceCompanyID)
	if err != nil {
		return nil, err
	}
	dest, err := endpointFor(e, in.DestCompanyID)
	if err != nil {
		return nil, err
	}
	f, err := NewFlow(in.PlayerID, source, dest, resource, in.QuantityUnits, in.PricePerUnitMicros, freq, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.flows.InsertFlow(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func endpointFor(e *Empire, companyID string) (FlowEndpoint, error) {
	i := e.companyIndex(companyID)
	if i < 0 {
		return FlowEndpoint{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
	}
	c := e.Companies[i]
	return FlowEndpoint{CompanyID: c.ID, Name: c.Name, Industry: c.Industry}, nil
}

func (s *FlowService) Get(ctx context.Context, playerID, flowID string) (*Flow, error) {
	return s.ownedFlow(ctx, playerID, flowID)
}

func (s *FlowService) List(ctx context.Context, playerID string) ([]*Flow, error) {
	return s.flows.FlowsByPlayer(ctx, playerID)
}

func (s *FlowService) Pause(ctx context.Context, playerID, flowID string) (*Flow, error) {
	return s.transition(ctx, playerID, flowID, (*Flow).Pause)
}

func (s *FlowService) Resume(ctx context.Context, playerID, flowID string) (*Flow, error) {
	return s.transition(ctx, playerID, flowID, (*Flow).Resume)
}

func (s *FlowService) Cancel(ctx context.Context, playerID, flowID string) (*Flow, error) {
	return s.transition(ctx, playerID, flowID, (*Flow).Cancel)
}

// Savings evaluates the flow against a market price. Informational only.
func (s *FlowService) Savings(ctx context.Context, playerID, flowID string, marketPriceMicros int64) (SavingsView, error) {
	if marketPriceMicros < 0 {
		return SavingsView{}, fmt.Errorf("%w: market price must be >= 0", ErrInvalidArgument)
	}
	f, err := s.ownedFlow(ctx, playerID, flowID)
	if err != nil {
		return SavingsView{}, err
	}
	return SavingsView{
		FlowID:             f.ID,
		MarketPriceMicros:  marketPriceMicros,
		PricePerUnitMicros: f.PricePerUnitMicros,
		SavingsMicros:      f.SavingsMicros(marketPriceMicros),
	}, nil
}

// transition applies a lifecycle change with the same reload-and-reapply
// discipline as empire mutations. Invalid transitions are returned
// as-is: they are caller errors, not races.
func (s *FlowService) transition(ctx context.Context, playerID, flowID string, apply func(f *Flow, now time.Time) error) (*Flow, error) {
	retryDelay := mutateRetryDelay
	for attempt := 0; ; attempt++ {
		f, err := s.ownedFlow(ctx, playerID, flowID)
		if err != nil {
			return nil, err
		}
		loaded := f.Version
		if err := apply(f, s.clock()); err != nil {
			return nil, err
		}
		err = s.flows.UpdateFlow(ctx, f, loaded)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		if attempt == mutateMaxAttempts-1 {
			return nil, err
		}
		s.log.Warn("flow write conflict, retrying", "flow_id", flowID, "attempt", attempt+1)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return nil, err
		}
		if retryDelay < mutateMaxDelay {
			retryDelay *= 2
		}
	}
}

// ownedFlow hides other players' flows behind not-found.
func (s *FlowService) ownedFlow(ctx context.Context, playerID, flowID string) (*Flow, error) {
	f, err := s.flows.FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if f.PlayerID != playerID {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	return f, nil
}
