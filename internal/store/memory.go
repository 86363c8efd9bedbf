package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"empires/internal/game"
)

// Memory keeps empires and flows in process. It backs the test suites
// and the API's demo mode, and enforces the same version-checked writes
// as the Postgres store so concurrency behavior matches.
type Memory struct {
	mu      sync.RWMutex
	empires map[string]*game.Empire // keyed by player id
	flows   map[string]*game.Flow
}

func NewMemory() *Memory {
	return &Memory{
		empires: make(map[string]*game.Empire),
		flows:   make(map[string]*game.Flow),
	}
}

func (m *Memory) EmpireByPlayer(_ context.Context, playerID string) (*game.Empire, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.empires[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", game.ErrEmpireNotFound, playerID)
	}
	return cloneEmpire(e), nil
}

func (m *Memory) InsertEmpire(_ context.Context, e *game.Empire) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.empires[e.PlayerID]; ok {
		return fmt.Errorf("%w: player %s", game.ErrEmpireExists, e.PlayerID)
	}
	e.Version = 1
	m.empires[e.PlayerID] = cloneEmpire(e)
	return nil
}

func (m *Memory) UpdateEmpire(_ context.Context, e *game.Empire, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.empires[e.PlayerID]
	if !ok {
		return fmt.Errorf("%w: player %s", game.ErrEmpireNotFound, e.PlayerID)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("%w: empire %s", game.ErrVersionConflict, e.PlayerID)
	}
	e.Version = expectedVersion + 1
	m.empires[e.PlayerID] = cloneEmpire(e)
	return nil
}

func (m *Memory) InsertFlow(_ context.Context, f *game.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[f.ID]; ok {
		return fmt.Errorf("flow %s already exists", f.ID)
	}
	f.Version = 1
	m.flows[f.ID] = cloneFlow(f)
	return nil
}

func (m *Memory) FlowByID(_ context.Context, id string) (*game.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrFlowNotFound, id)
	}
	return cloneFlow(f), nil
}

func (m *Memory) FlowsByPlayer(_ context.Context, playerID string) ([]*game.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Flow
	for _, f := range m.flows {
		if f.PlayerID == playerID {
			out = append(out, cloneFlow(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DueFlows(_ context.Context, now time.Time, limit int) ([]*game.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Flow
	for _, f := range m.flows {
		if f.Status != game.FlowActive || f.NextRunAt == nil {
			continue
		}
		if f.NextRunAt.After(now) {
			continue
		}
		out = append(out, cloneFlow(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(*out[j].NextRunAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateFlow(_ context.Context, f *game.Flow, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.flows[f.ID]
	if !ok {
		return fmt.Errorf("%w: %s", game.ErrFlowNotFound, f.ID)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("%w: flow %s", game.ErrVersionConflict, f.ID)
	}
	f.Version = expectedVersion + 1
	m.flows[f.ID] = cloneFlow(f)
	return nil
}

// Clones keep callers from mutating stored state through shared slices
// or time pointers.

func cloneEmpire(e *game.Empire) *game.Empire {
	out := *e
	out.Companies = append([]game.Company(nil), e.Companies...)
	out.Synergies = make([]game.ActiveSynergy, len(e.Synergies))
	for i, s := range e.Synergies {
		cp := s
		cp.CompanyIDs = append([]string(nil), s.CompanyIDs...)
		cp.Bonuses = append([]game.CalculatedBonus(nil), s.Bonuses...)
		out.Synergies[i] = cp
	}
	return &out
}

func cloneFlow(f *game.Flow) *game.Flow {
	out := *f
	if f.LastRunAt != nil {
		t := *f.LastRunAt
		out.LastRunAt = &t
	}
	if f.NextRunAt != nil {
		t := *f.NextRunAt
		out.NextRunAt = &t
	}
	return &out
}
