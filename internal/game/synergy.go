package game

import (
	"fmt"
	"sort"
	"time"
)

// SynergyDef is one catalog entry: the industry combination that unlocks
// it and the bonuses it grants. The catalog is read-only for the
// recalculator.
type SynergyDef struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Tier       int32      `yaml:"tier"`
	Industries []Industry `yaml:"industries"`
	Bonuses    []BonusDef `yaml:"bonuses"`
}

// BonusDef describes one bonus before evaluation against empire totals.
type BonusDef struct {
	Metric      BonusMetric `yaml:"metric"`
	Bps         int32       `yaml:"bps"`
	Description string      `yaml:"description"`
}

func (d SynergyDef) satisfiedBy(owned map[Industry]struct{}) bool {
	for _, ind := range d.Industries {
		if _, ok := owned[ind]; !ok {
			return false
		}
	}
	return len(d.Industries) > 0
}

// RecalculateSynergies rewrites the active-synergy list from the catalog
// and current membership. Definitions whose required industries are all
// covered become (or stay) active, with bonuses evaluated against the
// current totals and contributing member ids recorded; the rest drop
// out. Running it twice with no membership change yields the same list.
func (e *Empire) RecalculateSynergies(catalog []SynergyDef, now time.Time) {
	owned := make(map[Industry]struct{}, len(e.Companies))
	for i := range e.Companies {
		owned[e.Companies[i].Industry] = struct{}{}
	}

	activatedAt := make(map[string]time.Time, len(e.Synergies))
	for _, s := range e.Synergies {
		activatedAt[s.ID] = s.ActivatedAt
	}

	var next []ActiveSynergy
	for _, def := range catalog {
		if !def.satisfiedBy(owned) {
			continue
		}
		at := now
		if prev, ok := activatedAt[def.ID]; ok {
			at = prev
		}
		next = append(next, ActiveSynergy{
			ID:          def.ID,
			Name:        def.Name,
			Tier:        def.Tier,
			ActivatedAt: at,
			CompanyIDs:  e.contributors(def),
			Bonuses:     e.calculateBonuses(def),
		})
	}
	sort.Slice(next, func(i, j int) bool {
		if next[i].Tier != next[j].Tier {
			return next[i].Tier < next[j].Tier
		}
		return next[i].ID < next[j].ID
	})
	e.Synergies = next
}

func (e *Empire) contributors(def SynergyDef) []string {
	required := make(map[Industry]struct{}, len(def.Industries))
	for _, ind := range def.Industries {
		required[ind] = struct{}{}
	}
	var ids []string
	for i := range e.Companies {
		if _, ok := required[e.Companies[i].Industry]; ok {
			ids = append(ids, e.Companies[i].ID)
		}
	}
	return ids
}

func (e *Empire) calculateBonuses(def SynergyDef) []CalculatedBonus {
	out := make([]CalculatedBonus, 0, len(def.Bonuses))
	for _, b := range def.Bonuses {
		base := e.metricValue(b.Metric)
		result, err := mulBps(base, b.Bps)
		if err != nil {
			result = 0
		}
		out = append(out, CalculatedBonus{
			Metric:        b.Metric,
			BaseMicros:    base,
			MultiplierBps: b.Bps,
			ResultMicros:  result,
			Description:   fmt.Sprintf("%s: %+.2f%% of %s", def.Name, float64(b.Bps)/100, b.Metric),
		})
	}
	return out
}

func (e *Empire) metricValue(metric BonusMetric) int64 {
	switch metric {
	case MetricMonthlyRevenue:
		return e.MonthlyRevenueMicros
	case MetricMonthlyExpenses:
		return e.MonthlyExpensesMicros
	case MetricTotalValue:
		return e.TotalValueMicros
	default:
		return 0
	}
}

// ActiveSynergy lookup by id, mostly for tests and the API detail view.
func (e *Empire) Synergy(id string) (ActiveSynergy, bool) {
	for _, s := range e.Synergies {
		if s.ID == id {
			return s, true
		}
	}
	return ActiveSynergy{}, false
}
