package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"empires/internal/game"
)

// EmpireRecalculator refreshes an empire's derived totals after one of
// its flows executed. Optional; the sweep works without it.
type EmpireRecalculator interface {
	Recalculate(ctx context.Context, playerID string) (*game.Empire, error)
}

type Config struct {
	SweepEvery   time.Duration
	FlowTimeout  time.Duration
	Workers      int
	BatchLimit   int
	TouchEmpires bool
}

func (c Config) withDefaults() Config {
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
	if c.FlowTimeout <= 0 {
		c.FlowTimeout = 10 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 256
	}
	return c
}

// SweepStats summarizes one pass over the due flows.
type SweepStats struct {
	Due       int
	Processed int
	Completed int
	Skipped   int // status changed between query and processing
	Conflicts int // conditional save lost to another writer
	Failures  int
}

// Scheduler runs the periodic sweep: find due flows, execute each
// transfer, save conditionally. Flows in a pass are independent and
// processed by a small worker pool; the version-checked save guarantees
// at most one effective execution per flow even if passes overlap.
type Scheduler struct {
	flows   game.FlowStore
	empires EmpireRecalculator
	log     *slog.Logger
	clock   game.Clock
	cfg     Config
}

func New(flows game.FlowStore, empires EmpireRecalculator, logger *slog.Logger, clock game.Clock, cfg Config) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		flows:   flows,
		empires: empires,
		log:     logger,
		clock:   clock,
		cfg:     cfg.withDefaults(),
	}
}

// Run sweeps on a fixed cadence until the context is cancelled. A sweep
// that returns an error (the due query itself failed) is logged and the
// next tick tries again.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepEvery)
	defer ticker.Stop()

	s.log.Info("flow scheduler started",
		"sweep_every", s.cfg.SweepEvery.String(),
		"workers", s.cfg.Workers,
		"flow_timeout", s.cfg.FlowTimeout.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("flow scheduler shutdown")
			return
		case <-ticker.C:
			stats, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error("sweep failed", "err", err)
				continue
			}
			s.log.Info("sweep complete",
				"due", stats.Due,
				"processed", stats.Processed,
				"completed", stats.Completed,
				"skipped", stats.Skipped,
				"conflicts", stats.Conflicts,
				"failures", stats.Failures)
		}
	}
}

// Sweep runs a single pass. Per-flow failures are counted and logged,
// never propagated: one stuck flow must not stall the rest of the pass.
func (s *Scheduler) Sweep(ctx context.Context) (SweepStats, error) {
	now := s.clock()
	due, err := s.flows.DueFlows(ctx, now, s.cfg.BatchLimit)
	if err != nil {
		return SweepStats{}, err
	}
	stats := SweepStats{Due: len(due)}
	if len(due) == 0 {
		return stats, nil
	}

	jobs := make(chan *game.Flow)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				outcome := s.processOne(ctx, f, now)
				mu.Lock()
				switch outcome {
				case outcomeProcessed:
					stats.Processed++
				case outcomeCompleted:
					stats.Processed++
					stats.Completed++
				case outcomeSkipped:
					stats.Skipped++
				case outcomeConflict:
					stats.Conflicts++
				case outcomeFailed:
					stats.Failures++
				}
				mu.Unlock()
			}
		}()
	}
	for _, f := range due {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	return stats, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeCompleted
	outcomeSkipped
	outcomeConflict
	outcomeFailed
)

// processOne executes a single flow transfer as a bounded unit: the
// save gets its own timeout so a stuck store call is abandoned, not
// waited on. A lost conditional save means another worker already
// advanced the flow; nothing was double-counted, so it is only a skip.
func (s *Scheduler) processOne(ctx context.Context, f *game.Flow, now time.Time) outcome {
	loaded := f.Version
	result := f.ProcessTransfer(now)
	if !result.Processed {
		// Paused or cancelled after the due query ran.
		s.log.Debug("flow not processed", "flow_id", f.ID, "reason", result.Reason)
		return outcomeSkipped
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.FlowTimeout)
	defer cancel()
	if err := s.flows.UpdateFlow(fctx, f, loaded); err != nil {
		if errors.Is(err, game.ErrVersionConflict) {
			return outcomeConflict
		}
		// The flow stays active and due; it will be retried on the
		// next pass and surfaces in the failure count until then.
		s.log.Error("flow transfer save failed", "flow_id", f.ID, "player_id", f.PlayerID, "err", err)
		return outcomeFailed
	}

	if s.cfg.TouchEmpires && s.empires != nil {
		if _, err := s.empires.Recalculate(fctx, f.PlayerID); err != nil {
			s.log.Warn("empire recalculate after transfer failed", "player_id", f.PlayerID, "err", err)
		}
	}
	if result.Completed {
		return outcomeCompleted
	}
	return outcomeProcessed
}
