package game

import (
	"fmt"
	"time"
)

// NewEmpire creates an empty level-1 empire for a player.
func NewEmpire(playerID, name string, now time.Time) *Empire {
	spec, _ := levelSpec(1)
	return &Empire{
		PlayerID:       playerID,
		Name:           name,
		Level:          spec.Level,
		MultiplierBps:  spec.MultiplierBps,
		RecalculatedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (e *Empire) companyIndex(companyID string) int {
	for i := range e.Companies {
		if e.Companies[i].ID == companyID {
			return i
		}
	}
	return -1
}

func (e *Empire) hasIndustry(ind Industry) bool {
	for i := range e.Companies {
		if e.Companies[i].Industry == ind {
			return true
		}
	}
	return false
}

// AddCompany appends a member, recomputes the aggregate and the active
// synergies, and grants acquisition XP (plus the new-industry grant when
// the member opens an industry the empire did not cover). Each grant
// runs the leveling walk immediately. The caller saves once at the end.
func (e *Empire) AddCompany(c Company, catalog []SynergyDef, now time.Time) error {
	if e.companyIndex(c.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateCompany, c.ID)
	}
	// Decided before insertion: the member itself must not count.
	newIndustry := !e.hasIndustry(c.Industry)

	c.Headquarters = len(e.Companies) == 0
	c.JoinedAt = now
	e.Companies = append(e.Companies, c)

	e.Recompute(now)
	e.RecalculateSynergies(catalog, now)

	if _, _, err := e.AddXP(XPCompanyAcquired); err != nil {
		return err
	}
	if newIndustry {
		if _, _, err := e.AddXP(XPNewIndustry); err != nil {
			return err
		}
	}
	return nil
}

// RemoveCompany drops a member and reassigns the headquarters flag to
// the first remaining member if the removed one held it. XP already
// granted for the member is not revoked.
func (e *Empire) RemoveCompany(companyID string, catalog []SynergyDef, now time.Time) error {
	i := e.companyIndex(companyID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
	}
	wasHQ := e.Companies[i].Headquarters
	e.Companies = append(e.Companies[:i], e.Companies[i+1:]...)
	if wasHQ && len(e.Companies) > 0 {
		e.Companies[0].Headquarters = true
	}
	e.Recompute(now)
	e.RecalculateSynergies(catalog, now)
	return nil
}

// UpdateCompanyStats applies the non-nil fields of the update and
// recomputes the aggregate. Membership does not change, so the synergy
// list is left alone.
func (e *Empire) UpdateCompanyStats(in UpdateCompanyInput, now time.Time) error {
	i := e.companyIndex(in.CompanyID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrCompanyNotFound, in.CompanyID)
	}
	c := &e.Companies[i]
	if in.Name != nil {
		if err := validateEntityName(*in.Name); err != nil {
			return err
		}
		c.Name = *in.Name
	}
	if in.Level != nil {
		if *in.Level < 1 {
			return fmt.Errorf("%w: company level must be >= 1", ErrInvalidArgument)
		}
		c.Level = *in.Level
	}
	if in.RevenueMicros != nil {
		if *in.RevenueMicros < 0 {
			return fmt.Errorf("%w: revenue must be >= 0", ErrInvalidArgument)
		}
		c.RevenueMicros = *in.RevenueMicros
	}
	if in.ValueMicros != nil {
		if *in.ValueMicros < 0 {
			return fmt.Errorf("%w: value must be >= 0", ErrInvalidArgument)
		}
		c.ValueMicros = *in.ValueMicros
	}
	e.Recompute(now)
	return nil
}

// SetHeadquarters moves the headquarters flag to the target member.
func (e *Empire) SetHeadquarters(companyID string) error {
	i := e.companyIndex(companyID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
	}
	for j := range e.Companies {
		e.Companies[j].Headquarters = j == i
	}
	return nil
}

// Headquarters returns the current headquarters member, if any.
func (e *Empire) Headquarters() (Company, bool) {
	for i := range e.Companies {
		if e.Companies[i].Headquarters {
			return e.Companies[i], true
		}
	}
	return Company{}, false
}

// AddXP adds amount to the XP counter, then advances the level one step
// at a time while the next level's XP, company-count and industry-count
// thresholds all hold. It never skips a level, even when XP alone would
// qualify for a much higher one. The caller persists.
func (e *Empire) AddXP(amount int64) (bool, int32, error) {
	if amount < 0 {
		return false, e.Level, fmt.Errorf("%w: xp amount must be >= 0", ErrInvalidArgument)
	}
	e.XP += amount

	leveled := false
	for e.Level < MaxLevel {
		next, ok := levelSpec(e.Level + 1)
		if !ok {
			break
		}
		if e.XP < next.XPRequired || len(e.Companies) < next.MinCompanies || e.IndustryCount < next.MinIndustries {
			break
		}
		e.Level = next.Level
		e.MultiplierBps = next.MultiplierBps
		leveled = true
	}
	return leveled, e.Level, nil
}

// Recompute rebuilds the derived totals from current membership. It is
// pure over the member list and idempotent. The synergy multiplier is
// re-pinned to the current level's multiplier, not recomputed from XP:
// leveling and recompute are deliberately decoupled so recompute can run
// after any membership edit without triggering level transitions.
func (e *Empire) Recompute(now time.Time) {
	var value, revenue int64
	industries := make(map[Industry]struct{}, len(e.Companies))
	for i := range e.Companies {
		value += e.Companies[i].ValueMicros
		revenue += e.Companies[i].RevenueMicros
		industries[e.Companies[i].Industry] = struct{}{}
	}
	e.TotalValueMicros = value
	e.MonthlyRevenueMicros = revenue
	expenses, err := mulBps(revenue, OperatingCostBps)
	if err != nil {
		expenses = revenue
	}
	e.MonthlyExpensesMicros = expenses
	e.IndustryCount = len(industries)
	if spec, ok := levelSpec(e.Level); ok {
		e.MultiplierBps = spec.MultiplierBps
	}
	e.RecalculatedAt = now
}
