package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewFlow builds an active flow. Recurring flows schedule their first
// run one period out; one-time flows are due immediately, so the next
// scheduler pass picks them up.
func NewFlow(playerID string, source, dest FlowEndpoint, resource ResourceKind, qtyUnits, priceMicros int64, freq Frequency, now time.Time) (*Flow, error) {
	if qtyUnits <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrInvalidArgument)
	}
	if priceMicros < 0 {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrInvalidArgument)
	}
	if source.CompanyID == dest.CompanyID {
		return nil, fmt.Errorf("%w: source and destination must differ", ErrInvalidArgument)
	}
	f := &Flow{
		ID:                 uuid.NewString(),
		PlayerID:           playerID,
		Source:             source,
		Dest:               dest,
		Resource:           resource,
		QuantityUnits:      qtyUnits,
		PricePerUnitMicros: priceMicros,
		Internal:           true,
		Frequency:          freq,
		Status:             FlowActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	next := f.nextRunFrom(now)
	f.NextRunAt = &next
	return f, nil
}

// nextRunFrom computes the next execution measured from now — never from
// the previous next-run. Missed ticks are skipped, not backfilled, so a
// stalled scheduler cannot build an execution backlog.
func (f *Flow) nextRunFrom(now time.Time) time.Time {
	switch f.Frequency {
	case FrequencyDaily:
		return now.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return now.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return now.AddDate(0, 1, 0)
	default: // once: due immediately
		return now
	}
}

// ProcessTransfer executes one transfer. On a non-active flow it changes
// nothing and reports why. One-time flows complete after their single
// execution; recurring flows advance next-run by one period from now.
func (f *Flow) ProcessTransfer(now time.Time) TransferResult {
	if f.Status != FlowActive {
		return TransferResult{Reason: fmt.Sprintf("flow is %s", f.Status)}
	}
	value, err := mulMicros(f.QuantityUnits, f.PricePerUnitMicros)
	if err != nil {
		return TransferResult{Reason: err.Error()}
	}

	f.TotalQuantityUnits += f.QuantityUnits
	f.TotalValueMicros += value
	f.TransferCount++
	ran := now
	f.LastRunAt = &ran
	f.UpdatedAt = now

	if f.Frequency == FrequencyOnce {
		f.Status = FlowCompleted
		f.NextRunAt = nil
		return TransferResult{Processed: true, ValueMicros: value, Completed: true}
	}
	next := f.nextRunFrom(now)
	f.NextRunAt = &next
	return TransferResult{Processed: true, ValueMicros: value, NextRunAt: &next}
}

// Pause suspends an active flow. The scheduler skips paused flows.
func (f *Flow) Pause(now time.Time) error {
	if f.Status != FlowActive {
		return fmt.Errorf("%w: cannot pause a %s flow", ErrInvalidTransition, f.Status)
	}
	f.Status = FlowPaused
	f.UpdatedAt = now
	return nil
}

// Resume reactivates a paused flow. Next-run restarts from now; time
// spent paused is not backfilled.
func (f *Flow) Resume(now time.Time) error {
	if f.Status != FlowPaused {
		return fmt.Errorf("%w: cannot resume a %s flow", ErrInvalidTransition, f.Status)
	}
	f.Status = FlowActive
	next := f.nextRunFrom(now)
	f.NextRunAt = &next
	f.UpdatedAt = now
	return nil
}

// Cancel terminates an active or paused flow and clears its schedule.
// Completed and cancelled are terminal; cancelling again is an error,
// never a silent state change.
func (f *Flow) Cancel(now time.Time) error {
	if f.Status != FlowActive && f.Status != FlowPaused {
		return fmt.Errorf("%w: cannot cancel a %s flow", ErrInvalidTransition, f.Status)
	}
	f.Status = FlowCancelled
	f.NextRunAt = nil
	f.UpdatedAt = now
	return nil
}

// SavingsMicros reports what the cumulative transferred quantity saved
// against a market price. Purely informational; zero unless the flow is
// internal and priced below market.
func (f *Flow) SavingsMicros(marketPriceMicros int64) int64 {
	if !f.Internal || marketPriceMicros <= f.PricePerUnitMicros {
		return 0
	}
	saved, err := mulMicros(f.TotalQuantityUnits, marketPriceMicros-f.PricePerUnitMicros)
	if err != nil {
		return 0
	}
	return saved
}
