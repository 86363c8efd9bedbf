package game

// LevelSpec is one row of the progression table. Advancing to a level
// requires all three thresholds at once: cumulative XP, member count and
// distinct-industry count.
type LevelSpec struct {
	Level         int32
	Name          string
	XPRequired    int64
	MinCompanies  int
	MinIndustries int
	MultiplierBps int32
}

// levelTable is configuration, not behavior: XP thresholds and
// multipliers are strictly increasing, and the walk in AddXP does not
// depend on the specific numbers.
var levelTable = []LevelSpec{
	{Level: 1, Name: "Founder", XPRequired: 0, MinCompanies: 0, MinIndustries: 0, MultiplierBps: 10_000},
	{Level: 2, Name: "Proprietor", XPRequired: 250, MinCompanies: 2, MinIndustries: 1, MultiplierBps: 10_500},
	{Level: 3, Name: "Venturer", XPRequired: 750, MinCompanies: 3, MinIndustries: 2, MultiplierBps: 11_000},
	{Level: 4, Name: "Magnate", XPRequired: 1_500, MinCompanies: 4, MinIndustries: 2, MultiplierBps: 11_750},
	{Level: 5, Name: "Baron", XPRequired: 3_000, MinCompanies: 5, MinIndustries: 3, MultiplierBps: 12_500},
	{Level: 6, Name: "Tycoon", XPRequired: 5_000, MinCompanies: 7, MinIndustries: 3, MultiplierBps: 13_500},
	{Level: 7, Name: "Mogul", XPRequired: 8_000, MinCompanies: 9, MinIndustries: 4, MultiplierBps: 14_500},
	{Level: 8, Name: "Oligarch", XPRequired: 12_500, MinCompanies: 11, MinIndustries: 5, MultiplierBps: 15_750},
	{Level: 9, Name: "Industrialist", XPRequired: 18_000, MinCompanies: 13, MinIndustries: 6, MultiplierBps: 17_000},
	{Level: 10, Name: "Kingmaker", XPRequired: 26_000, MinCompanies: 16, MinIndustries: 7, MultiplierBps: 18_500},
	{Level: 11, Name: "Dynast", XPRequired: 36_000, MinCompanies: 20, MinIndustries: 8, MultiplierBps: 20_000},
	{Level: 12, Name: "Imperator", XPRequired: 50_000, MinCompanies: 25, MinIndustries: 9, MultiplierBps: 22_000},
}

func levelSpec(level int32) (LevelSpec, bool) {
	for _, spec := range levelTable {
		if spec.Level == level {
			return spec, true
		}
	}
	return LevelSpec{}, false
}

// LevelName returns the display name for a level, empty for levels
// outside the table.
func LevelName(level int32) string {
	spec, ok := levelSpec(level)
	if !ok {
		return ""
	}
	return spec.Name
}

// Levels returns a copy of the progression table for read-only surfaces.
func Levels() []LevelSpec {
	out := make([]LevelSpec, len(levelTable))
	copy(out, levelTable)
	return out
}
