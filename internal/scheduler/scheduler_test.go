package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"empires/internal/game"
	"empires/internal/store"
)

var schedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) game.Clock {
	return func() time.Time { return at }
}

func seedFlow(t *testing.T, m *store.Memory, freq game.Frequency, next time.Time) *game.Flow {
	t.Helper()
	f, err := game.NewFlow("p1",
		game.FlowEndpoint{CompanyID: "a", Name: "A", Industry: game.IndustryEnergy},
		game.FlowEndpoint{CompanyID: "b", Name: "B", Industry: game.IndustryManufacturing},
		game.ResourceEnergy, 10, game.MicrosPerCredit, freq, schedNow.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	f.NextRunAt = &next
	if err := m.InsertFlow(context.Background(), f); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return f
}

// flakyStore delegates to Memory but fails saves for selected flows.
type flakyStore struct {
	*store.Memory
	failIDs     map[string]bool
	conflictIDs map[string]bool
}

func (s *flakyStore) UpdateFlow(ctx context.Context, f *game.Flow, expectedVersion int64) error {
	if s.failIDs[f.ID] {
		return fmt.Errorf("%w: injected", game.ErrStorage)
	}
	if s.conflictIDs[f.ID] {
		return fmt.Errorf("%w: injected", game.ErrVersionConflict)
	}
	return s.Memory.UpdateFlow(ctx, f, expectedVersion)
}

func TestSweepProcessesDueFlows(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	due1 := seedFlow(t, m, game.FrequencyDaily, schedNow.Add(-time.Hour))
	due2 := seedFlow(t, m, game.FrequencyWeekly, schedNow.Add(-time.Minute))
	notDue := seedFlow(t, m, game.FrequencyDaily, schedNow.Add(time.Hour))

	sched := New(m, nil, nil, fixedClock(schedNow), Config{Workers: 2})
	stats, err := sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Due != 2 || stats.Processed != 2 || stats.Failures != 0 {
		t.Fatalf("stats: %+v", stats)
	}

	for _, id := range []string{due1.ID, due2.ID} {
		f, err := m.FlowByID(ctx, id)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if f.TransferCount != 1 {
			t.Fatalf("flow %s transfer count: %d", id, f.TransferCount)
		}
		if f.NextRunAt == nil || !f.NextRunAt.After(schedNow) {
			t.Fatalf("flow %s next run not advanced: %v", id, f.NextRunAt)
		}
	}
	f, _ := m.FlowByID(ctx, notDue.ID)
	if f.TransferCount != 0 {
		t.Fatalf("future flow must not run, count=%d", f.TransferCount)
	}
}

func TestSweepCompletesOneTimeFlows(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	once := seedFlow(t, m, game.FrequencyOnce, schedNow.Add(-time.Minute))

	sched := New(m, nil, nil, fixedClock(schedNow), Config{})
	stats, err := sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Processed != 1 || stats.Completed != 1 {
		t.Fatalf("stats: %+v", stats)
	}

	f, _ := m.FlowByID(ctx, once.ID)
	if f.Status != game.FlowCompleted || f.NextRunAt != nil {
		t.Fatalf("completed flow state: status=%s next=%v", f.Status, f.NextRunAt)
	}

	// Nothing is due on the next pass.
	stats, err = sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if stats.Due != 0 {
		t.Fatalf("completed flow still due: %+v", stats)
	}
}

func TestSweepIsolatesFailures(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	bad := seedFlow(t, m, game.FrequencyDaily, schedNow.Add(-2*time.Hour))
	good := seedFlow(t, m, game.FrequencyDaily, schedNow.Add(-time.Hour))

	flaky := &flakyStore{Memory: m, failIDs: map[string]bool{bad.ID: true}}
	sched := New(flaky, nil, nil, fixedClock(schedNow), Config{Workers: 1})
	stats, err := sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep must not propagate per-flow failures: %v", err)
	}
	if stats.Processed != 1 || stats.Failures != 1 {
		t.Fatalf("stats: %+v", stats)
	}

	// The failed flow is untouched and still due for the next pass.
	f, _ := m.FlowByID(ctx, bad.ID)
	if f.TransferCount != 0 || f.Status != game.FlowActive {
		t.Fatalf("failed flow mutated: count=%d status=%s", f.TransferCount, f.Status)
	}
	g, _ := m.FlowByID(ctx, good.ID)
	if g.TransferCount != 1 {
		t.Fatalf("healthy flow not processed, count=%d", g.TransferCount)
	}
}

func TestSweepCountsConflictsAsSkips(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	f := seedFlow(t, m, game.FrequencyDaily, schedNow.Add(-time.Hour))

	flaky := &flakyStore{Memory: m, conflictIDs: map[string]bool{f.ID: true}}
	sched := New(flaky, nil, nil, fixedClock(schedNow), Config{})
	stats, err := sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Conflicts != 1 || stats.Failures != 0 || stats.Processed != 0 {
		t.Fatalf("stats: %+v", stats)
	}

	stored, _ := m.FlowByID(ctx, f.ID)
	if stored.TransferCount != 0 {
		t.Fatalf("lost race must not persist a transfer, count=%d", stored.TransferCount)
	}
}

// staleStore returns a canned batch from DueFlows, standing in for a
// flow whose status changed between the query and processing.
type staleStore struct {
	*store.Memory
	batch []*game.Flow
}

func (s *staleStore) DueFlows(_ context.Context, _ time.Time, _ int) ([]*game.Flow, error) {
	return s.batch, nil
}

func TestSweepSkipsFlowsPausedAfterQuery(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	f := seedFlow(t, m, game.FrequencyDaily, schedNow.Add(-time.Hour))

	snapshot, _ := m.FlowByID(ctx, f.ID)
	if err := snapshot.Pause(schedNow); err != nil {
		t.Fatalf("pause: %v", err)
	}

	stale := &staleStore{Memory: m, batch: []*game.Flow{snapshot}}
	sched := New(stale, nil, nil, fixedClock(schedNow), Config{})
	stats, err := sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Skipped != 1 || stats.Processed != 0 {
		t.Fatalf("stats: %+v", stats)
	}
	stored, _ := m.FlowByID(ctx, f.ID)
	if stored.TransferCount != 0 {
		t.Fatalf("skipped flow must not record a transfer, count=%d", stored.TransferCount)
	}
}

type countingRecalc struct {
	calls int
}

func (r *countingRecalc) Recalculate(_ context.Context, _ string) (*game.Empire, error) {
	r.calls++
	return nil, nil
}

func TestSweepTouchesEmpiresWhenConfigured(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedFlow(t, m, game.FrequencyDaily, schedNow.Add(-time.Hour))

	recalc := &countingRecalc{}
	sched := New(m, recalc, nil, fixedClock(schedNow), Config{TouchEmpires: true, Workers: 1})
	if _, err := sched.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if recalc.calls != 1 {
		t.Fatalf("expected one empire recalculation, got %d", recalc.calls)
	}

	// Off by default.
	recalc.calls = 0
	seedFlow(t, m, game.FrequencyDaily, schedNow.Add(-time.Hour))
	sched = New(m, recalc, nil, fixedClock(schedNow), Config{})
	if _, err := sched.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if recalc.calls != 0 {
		t.Fatalf("empire touch should be opt-in, got %d calls", recalc.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := store.NewMemory()
	sched := New(m, nil, nil, fixedClock(schedNow), Config{SweepEvery: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduler did not stop on cancel")
	}
}
