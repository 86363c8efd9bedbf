package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"empires/internal/game"
)

var memNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func seedFlow(t *testing.T, m *Memory, playerID string, freq game.Frequency, next time.Time) *game.Flow {
	t.Helper()
	f, err := game.NewFlow(playerID,
		game.FlowEndpoint{CompanyID: "a", Name: "A", Industry: game.IndustryEnergy},
		game.FlowEndpoint{CompanyID: "b", Name: "B", Industry: game.IndustryRetail},
		game.ResourceEnergy, 1, 0, freq, memNow)
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	f.NextRunAt = &next
	if err := m.InsertFlow(context.Background(), f); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return f
}

func TestMemoryEmpireVersioning(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	e := game.NewEmpire("p1", "Mem Empire", memNow)
	if err := m.InsertEmpire(ctx, e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.InsertEmpire(ctx, e); !errors.Is(err, game.ErrEmpireExists) {
		t.Fatalf("duplicate insert: %v", err)
	}

	loaded, err := m.EmpireByPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Version != 1 {
		t.Fatalf("fresh version: %d", loaded.Version)
	}

	loaded.XP = 100
	if err := m.UpdateEmpire(ctx, loaded, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	// A writer holding the old version loses.
	stale := *loaded
	if err := m.UpdateEmpire(ctx, &stale, 1); !errors.Is(err, game.ErrVersionConflict) {
		t.Fatalf("stale update should conflict, got %v", err)
	}

	if _, err := m.EmpireByPlayer(ctx, "nobody"); !errors.Is(err, game.ErrEmpireNotFound) {
		t.Fatalf("missing empire: %v", err)
	}
}

func TestMemoryCloneIsolation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	e := game.NewEmpire("p1", "Clone Empire", memNow)
	e.Companies = []game.Company{{ID: "c1", Name: "One", Industry: game.IndustryRetail, Level: 1}}
	if err := m.InsertEmpire(ctx, e); err != nil {
		t.Fatalf("insert: %v", err)
	}

	loaded, _ := m.EmpireByPlayer(ctx, "p1")
	loaded.Companies[0].Name = "mutated"

	again, _ := m.EmpireByPlayer(ctx, "p1")
	if again.Companies[0].Name != "One" {
		t.Fatalf("stored state mutated through a returned copy")
	}
}

func TestMemoryDueFlows(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	late := seedFlow(t, m, "p1", game.FrequencyDaily, memNow.Add(-2*time.Hour))
	early := seedFlow(t, m, "p1", game.FrequencyDaily, memNow.Add(-5*time.Hour))
	seedFlow(t, m, "p1", game.FrequencyDaily, memNow.Add(time.Hour)) // not due yet

	paused := seedFlow(t, m, "p1", game.FrequencyDaily, memNow.Add(-time.Hour))
	if err := paused.Pause(memNow); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := m.UpdateFlow(ctx, paused, paused.Version); err != nil {
		t.Fatalf("save paused: %v", err)
	}

	due, err := m.DueFlows(ctx, memNow, 0)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due flows, got %d", len(due))
	}
	// Oldest next-run first.
	if due[0].ID != early.ID || due[1].ID != late.ID {
		t.Fatalf("due order: %s, %s", due[0].ID, due[1].ID)
	}

	limited, err := m.DueFlows(ctx, memNow, 1)
	if err != nil {
		t.Fatalf("due limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != early.ID {
		t.Fatalf("limit should keep the oldest, got %v", limited)
	}
}

func TestMemoryFlowVersionConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	f := seedFlow(t, m, "p1", game.FrequencyDaily, memNow)

	a, _ := m.FlowByID(ctx, f.ID)
	b, _ := m.FlowByID(ctx, f.ID)

	a.ProcessTransfer(memNow)
	if err := m.UpdateFlow(ctx, a, a.Version); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	b.ProcessTransfer(memNow)
	if err := m.UpdateFlow(ctx, b, b.Version); !errors.Is(err, game.ErrVersionConflict) {
		t.Fatalf("second writer should lose, got %v", err)
	}

	stored, _ := m.FlowByID(ctx, f.ID)
	if stored.TransferCount != 1 {
		t.Fatalf("transfer must count exactly once, got %d", stored.TransferCount)
	}
}

func TestMemoryFlowsByPlayer(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedFlow(t, m, "p1", game.FrequencyDaily, memNow)
	seedFlow(t, m, "p1", game.FrequencyWeekly, memNow)
	seedFlow(t, m, "p2", game.FrequencyDaily, memNow)

	flows, err := m.FlowsByPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(flows) != 2 {
		t.Fatalf("expected 2 flows for p1, got %d", len(flows))
	}
	for _, f := range flows {
		if f.PlayerID != "p1" {
			t.Fatalf("foreign flow in listing: %s", f.PlayerID)
		}
	}
}
