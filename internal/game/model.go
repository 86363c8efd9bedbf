package game

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	MicrosPerCredit = int64(1_000_000)

	// XP grants on membership changes.
	XPCompanyAcquired = int64(100)
	XPNewIndustry     = int64(250)

	MaxLevel = int32(12)

	// Share of member revenue booked as operating expense during
	// recompute. Members carry no expense figure of their own.
	OperatingCostBps = int32(3500)
)

var (
	ErrEmpireNotFound  = errors.New("empire not found")
	ErrEmpireExists    = errors.New("empire already exists for player")
	ErrCompanyNotFound = errors.New("company not found in empire")
	ErrDuplicateCompany = errors.New("company already in empire")

	ErrFlowNotFound      = errors.New("flow not found")
	ErrInvalidTransition = errors.New("flow status transition not permitted")

	ErrInvalidArgument = errors.New("invalid argument")

	// ErrVersionConflict signals an optimistic write that lost a race.
	// Services retry it by reloading and re-applying the operation.
	ErrVersionConflict = errors.New("record was modified concurrently")

	ErrStorage = errors.New("storage failure")
)

var industrySet = map[Industry]struct{}{
	IndustryBanking:       {},
	IndustryTechnology:    {},
	IndustryEnergy:        {},
	IndustryManufacturing: {},
	IndustryMedia:         {},
	IndustryRetail:        {},
	IndustryHealthcare:    {},
	IndustryRealEstate:    {},
	IndustryLogistics:     {},
	IndustryAgriculture:   {},
}

var resourceSet = map[ResourceKind]struct{}{
	ResourceCapital:     {},
	ResourceEnergy:      {},
	ResourceMaterials:   {},
	ResourceSoftware:    {},
	ResourceAdvertising: {},
	ResourceLogistics:   {},
	ResourceData:        {},
	ResourceTalent:      {},
}

func ParseIndustry(s string) (Industry, error) {
	ind := Industry(normalizeTag(s))
	if _, ok := industrySet[ind]; !ok {
		return "", fmt.Errorf("%w: unknown industry %q", ErrInvalidArgument, s)
	}
	return ind, nil
}

func ParseResourceKind(s string) (ResourceKind, error) {
	kind := ResourceKind(normalizeTag(s))
	if _, ok := resourceSet[kind]; !ok {
		return "", fmt.Errorf("%w: unknown resource kind %q", ErrInvalidArgument, s)
	}
	return kind, nil
}

func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(normalizeTag(s)) {
	case FrequencyOnce:
		return FrequencyOnce, nil
	case FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekly:
		return FrequencyWeekly, nil
	case FrequencyMonthly:
		return FrequencyMonthly, nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidArgument, s)
	}
}

func normalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "-", "_")
}

// Clock is the injectable time source. Services and the scheduler never
// call time.Now directly so sweeps stay deterministic in tests.
type Clock func() time.Time

// mulBps computes value * bps / 10_000 without intermediate overflow.
func mulBps(valueMicros int64, bps int32) (int64, error) {
	v := new(big.Int).Mul(big.NewInt(valueMicros), big.NewInt(int64(bps)))
	v = v.Div(v, big.NewInt(10_000))
	if !v.IsInt64() {
		return 0, fmt.Errorf("bps product overflow")
	}
	return v.Int64(), nil
}

// mulMicros computes quantity * price without intermediate overflow.
func mulMicros(qtyUnits, priceMicros int64) (int64, error) {
	v := new(big.Int).Mul(big.NewInt(qtyUnits), big.NewInt(priceMicros))
	if !v.IsInt64() {
		return 0, fmt.Errorf("transfer value overflow")
	}
	return v.Int64(), nil
}

func validateEntityName(name string) error {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if len(clean) > 64 {
		return fmt.Errorf("%w: name too long (max 64 chars)", ErrInvalidArgument)
	}
	return nil
}
