package game

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultCatalog ships in-source like the level table: a fixed slice the
// recalculator walks. A YAML file can replace it at startup.
var defaultCatalog = []SynergyDef{
	{
		ID: "fintech_stack", Name: "Fintech Stack", Tier: 1,
		Industries: []Industry{IndustryBanking, IndustryTechnology},
		Bonuses: []BonusDef{
			{Metric: MetricMonthlyRevenue, Bps: 500, Description: "payment rails uplift"},
		},
	},
	{
		ID: "media_reach", Name: "Media Reach", Tier: 1,
		Industries: []Industry{IndustryMedia, IndustryRetail},
		Bonuses: []BonusDef{
			{Metric: MetricMonthlyRevenue, Bps: 400, Description: "in-house advertising"},
		},
	},
	{
		ID: "powered_industry", Name: "Powered Industry", Tier: 1,
		Industries: []Industry{IndustryEnergy, IndustryManufacturing},
		Bonuses: []BonusDef{
			{Metric: MetricMonthlyExpenses, Bps: 600, Description: "subsidized power"},
		},
	},
	{
		ID: "supply_grid", Name: "Supply Grid", Tier: 2,
		Industries: []Industry{IndustryManufacturing, IndustryLogistics, IndustryRetail},
		Bonuses: []BonusDef{
			{Metric: MetricMonthlyRevenue, Bps: 700, Description: "vertical distribution"},
			{Metric: MetricMonthlyExpenses, Bps: 300, Description: "freight pooling"},
		},
	},
	{
		ID: "agri_chain", Name: "Farm To Shelf", Tier: 2,
		Industries: []Industry{IndustryAgriculture, IndustryLogistics, IndustryRetail},
		Bonuses: []BonusDef{
			{Metric: MetricMonthlyRevenue, Bps: 650, Description: "fresh-goods margin"},
		},
	},
	{
		ID: "health_capital", Name: "Health Capital", Tier: 2,
		Industries: []Industry{IndustryHealthcare, IndustryBanking},
		Bonuses: []BonusDef{
			{Metric: MetricTotalValue, Bps: 250, Description: "insurance float"},
		},
	},
	{
		ID: "smart_city", Name: "Smart City", Tier: 3,
		Industries: []Industry{IndustryRealEstate, IndustryTechnology, IndustryEnergy},
		Bonuses: []BonusDef{
			{Metric: MetricTotalValue, Bps: 400, Description: "connected property premium"},
			{Metric: MetricMonthlyExpenses, Bps: 350, Description: "automated facilities"},
		},
	},
	{
		ID: "conglomerate", Name: "Conglomerate", Tier: 3,
		Industries: []Industry{IndustryBanking, IndustryTechnology, IndustryMedia, IndustryManufacturing},
		Bonuses: []BonusDef{
			{Metric: MetricMonthlyRevenue, Bps: 1_000, Description: "cross-holding leverage"},
		},
	},
}

// DefaultCatalog returns a copy of the built-in synergy catalog.
func DefaultCatalog() []SynergyDef {
	out := make([]SynergyDef, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

type catalogFile struct {
	Synergies []SynergyDef `yaml:"synergies"`
}

// LoadCatalog reads a YAML synergy catalog, falling back to the built-in
// one when path is empty.
func LoadCatalog(path string) ([]SynergyDef, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := ValidateCatalog(file.Synergies); err != nil {
		return nil, err
	}
	return file.Synergies, nil
}

// ValidateCatalog rejects duplicate ids, unknown industries and
// non-positive tiers or bonus rates.
func ValidateCatalog(defs []SynergyDef) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: catalog is empty", ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if def.ID == "" {
			return fmt.Errorf("%w: synergy id is required", ErrInvalidArgument)
		}
		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("%w: duplicate synergy id %q", ErrInvalidArgument, def.ID)
		}
		seen[def.ID] = struct{}{}
		if def.Tier < 1 {
			return fmt.Errorf("%w: synergy %q tier must be >= 1", ErrInvalidArgument, def.ID)
		}
		if len(def.Industries) < 2 {
			return fmt.Errorf("%w: synergy %q needs at least two industries", ErrInvalidArgument, def.ID)
		}
		for _, ind := range def.Industries {
			if _, ok := industrySet[ind]; !ok {
				return fmt.Errorf("%w: synergy %q references unknown industry %q", ErrInvalidArgument, def.ID, ind)
			}
		}
		if len(def.Bonuses) == 0 {
			return fmt.Errorf("%w: synergy %q has no bonuses", ErrInvalidArgument, def.ID)
		}
		for _, b := range def.Bonuses {
			switch b.Metric {
			case MetricMonthlyRevenue, MetricMonthlyExpenses, MetricTotalValue:
			default:
				return fmt.Errorf("%w: synergy %q has unknown metric %q", ErrInvalidArgument, def.ID, b.Metric)
			}
			if b.Bps <= 0 {
				return fmt.Errorf("%w: synergy %q bonus bps must be > 0", ErrInvalidArgument, def.ID)
			}
		}
	}
	return nil
}
