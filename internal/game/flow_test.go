package game

import (
	"errors"
	"testing"
	"time"
)

func testFlow(t *testing.T, freq Frequency, qty, priceMicros int64) *Flow {
	t.Helper()
	f, err := NewFlow("p1",
		FlowEndpoint{CompanyID: "src", Name: "Source", Industry: IndustryEnergy},
		FlowEndpoint{CompanyID: "dst", Name: "Dest", Industry: IndustryManufacturing},
		ResourceEnergy, qty, priceMicros, freq, testNow)
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	return f
}

func TestNewFlowValidation(t *testing.T) {
	src := FlowEndpoint{CompanyID: "a"}
	dst := FlowEndpoint{CompanyID: "b"}
	if _, err := NewFlow("p1", src, dst, ResourceData, 0, 0, FrequencyDaily, testNow); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero quantity should fail, got %v", err)
	}
	if _, err := NewFlow("p1", src, dst, ResourceData, 1, -5, FrequencyDaily, testNow); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("negative price should fail, got %v", err)
	}
	if _, err := NewFlow("p1", src, src, ResourceData, 1, 0, FrequencyDaily, testNow); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("same endpoint should fail, got %v", err)
	}
}

func TestNewFlowSchedulesFirstRun(t *testing.T) {
	daily := testFlow(t, FrequencyDaily, 1, 0)
	if daily.NextRunAt == nil || !daily.NextRunAt.Equal(testNow.AddDate(0, 0, 1)) {
		t.Fatalf("daily first run: %v", daily.NextRunAt)
	}
	monthly := testFlow(t, FrequencyMonthly, 1, 0)
	if monthly.NextRunAt == nil || !monthly.NextRunAt.Equal(testNow.AddDate(0, 1, 0)) {
		t.Fatalf("monthly first run: %v", monthly.NextRunAt)
	}
	// One-time flows are due immediately.
	once := testFlow(t, FrequencyOnce, 1, 0)
	if once.NextRunAt == nil || !once.NextRunAt.Equal(testNow) {
		t.Fatalf("one-time first run: %v", once.NextRunAt)
	}
}

func TestProcessTransferZeroPriceMonthly(t *testing.T) {
	f := testFlow(t, FrequencyMonthly, 500, 0)
	runAt := testNow.AddDate(0, 1, 0)
	res := f.ProcessTransfer(runAt)
	if !res.Processed || res.Completed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ValueMicros != 0 {
		t.Fatalf("zero-price transfer has value %d", res.ValueMicros)
	}
	if f.TotalQuantityUnits != 500 || f.TransferCount != 1 {
		t.Fatalf("counters: qty=%d count=%d", f.TotalQuantityUnits, f.TransferCount)
	}
	if f.Status != FlowActive {
		t.Fatalf("recurring flow must stay active, got %s", f.Status)
	}
	if f.NextRunAt == nil || !f.NextRunAt.Equal(runAt.AddDate(0, 1, 0)) {
		t.Fatalf("next run should be one month from execution: %v", f.NextRunAt)
	}
}

func TestProcessTransferAccumulates(t *testing.T) {
	price := 2 * MicrosPerCredit
	f := testFlow(t, FrequencyDaily, 10, price)
	at := testNow
	for i := 0; i < 3; i++ {
		at = at.AddDate(0, 0, 1)
		res := f.ProcessTransfer(at)
		if !res.Processed {
			t.Fatalf("run %d not processed: %+v", i, res)
		}
	}
	if f.TransferCount != 3 || f.TotalQuantityUnits != 30 {
		t.Fatalf("counters: count=%d qty=%d", f.TransferCount, f.TotalQuantityUnits)
	}
	if f.TotalValueMicros != 3*10*price {
		t.Fatalf("total value: %d", f.TotalValueMicros)
	}
	if f.LastRunAt == nil || !f.LastRunAt.Equal(at) {
		t.Fatalf("last run: %v", f.LastRunAt)
	}
}

func TestProcessTransferSkipsMissedPeriods(t *testing.T) {
	f := testFlow(t, FrequencyDaily, 1, 0)
	// The scheduler was down for ten days; the flow runs once, not ten
	// times, and the next run is measured from now.
	late := testNow.AddDate(0, 0, 10)
	res := f.ProcessTransfer(late)
	if !res.Processed {
		t.Fatalf("not processed: %+v", res)
	}
	if f.TransferCount != 1 {
		t.Fatalf("missed periods must not backfill, count=%d", f.TransferCount)
	}
	if f.NextRunAt == nil || !f.NextRunAt.Equal(late.AddDate(0, 0, 1)) {
		t.Fatalf("next run must be measured from execution time: %v", f.NextRunAt)
	}
}

func TestProcessTransferOnceCompletes(t *testing.T) {
	f := testFlow(t, FrequencyOnce, 5, MicrosPerCredit)
	res := f.ProcessTransfer(testNow)
	if !res.Processed || !res.Completed {
		t.Fatalf("one-time flow should complete: %+v", res)
	}
	if f.Status != FlowCompleted || f.NextRunAt != nil {
		t.Fatalf("completed flow state: status=%s next=%v", f.Status, f.NextRunAt)
	}

	// A second call is a no-op report, not an error.
	res = f.ProcessTransfer(testNow.Add(time.Hour))
	if res.Processed || res.Reason == "" {
		t.Fatalf("completed flow must not process again: %+v", res)
	}
	if f.TransferCount != 1 {
		t.Fatalf("transfer count changed on no-op: %d", f.TransferCount)
	}
}

func TestFlowLifecycle(t *testing.T) {
	f := testFlow(t, FrequencyWeekly, 1, 0)

	if err := f.Pause(testNow); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if res := f.ProcessTransfer(testNow); res.Processed {
		t.Fatalf("paused flow must not process")
	}
	if err := f.Pause(testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double pause should fail, got %v", err)
	}

	resumeAt := testNow.Add(72 * time.Hour)
	if err := f.Resume(resumeAt); err != nil {
		t.Fatalf("resume: %v", err)
	}
	// Resume restarts the schedule from now, not from the stale slot.
	if f.NextRunAt == nil || !f.NextRunAt.Equal(resumeAt.AddDate(0, 0, 7)) {
		t.Fatalf("next run after resume: %v", f.NextRunAt)
	}

	if err := f.Cancel(testNow); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.Status != FlowCancelled || f.NextRunAt != nil {
		t.Fatalf("cancelled state: status=%s next=%v", f.Status, f.NextRunAt)
	}
	if err := f.Resume(testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resume after cancel should fail, got %v", err)
	}
	if err := f.Cancel(testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel is terminal, got %v", err)
	}
}

func TestCancelCompletedFlow(t *testing.T) {
	f := testFlow(t, FrequencyOnce, 1, 0)
	f.ProcessTransfer(testNow)
	if f.Status != FlowCompleted {
		t.Fatalf("precondition: completed")
	}
	if err := f.Cancel(testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancelling a completed flow should fail, got %v", err)
	}
}

func TestSavingsMicros(t *testing.T) {
	f := testFlow(t, FrequencyDaily, 100, 2*MicrosPerCredit)
	f.ProcessTransfer(testNow)
	f.ProcessTransfer(testNow.AddDate(0, 0, 1))

	// 200 units moved at 2 vs a market price of 5: 3 saved per unit.
	got := f.SavingsMicros(5 * MicrosPerCredit)
	want := int64(200) * 3 * MicrosPerCredit
	if got != want {
		t.Fatalf("savings: got %d want %d", got, want)
	}

	if f.SavingsMicros(2*MicrosPerCredit) != 0 {
		t.Fatalf("market at internal price saves nothing")
	}
	if f.SavingsMicros(MicrosPerCredit) != 0 {
		t.Fatalf("market below internal price saves nothing")
	}
}
