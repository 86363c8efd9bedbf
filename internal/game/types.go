package game

import "time"

// Industry tags a company belongs to. Synergies key off combinations of
// these, so the set is closed.
type Industry string

const (
	IndustryBanking       Industry = "banking"
	IndustryTechnology    Industry = "technology"
	IndustryEnergy        Industry = "energy"
	IndustryManufacturing Industry = "manufacturing"
	IndustryMedia         Industry = "media"
	IndustryRetail        Industry = "retail"
	IndustryHealthcare    Industry = "healthcare"
	IndustryRealEstate    Industry = "real_estate"
	IndustryLogistics     Industry = "logistics"
	IndustryAgriculture   Industry = "agriculture"
)

// ResourceKind is what a resource flow moves between two companies.
type ResourceKind string

const (
	ResourceCapital     ResourceKind = "capital"
	ResourceEnergy      ResourceKind = "energy"
	ResourceMaterials   ResourceKind = "materials"
	ResourceSoftware    ResourceKind = "software"
	ResourceAdvertising ResourceKind = "advertising"
	ResourceLogistics   ResourceKind = "logistics"
	ResourceData        ResourceKind = "data"
	ResourceTalent      ResourceKind = "talent"
)

// Company is a member of an empire. At most one member carries the
// headquarters flag, and exactly one whenever the empire is non-empty.
type Company struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Industry      Industry  `json:"industry"`
	Level         int32     `json:"level"`
	RevenueMicros int64     `json:"revenue_micros"`
	ValueMicros   int64     `json:"value_micros"`
	Headquarters  bool      `json:"headquarters"`
	JoinedAt      time.Time `json:"joined_at"`
}

// BonusMetric names the empire total a synergy bonus is computed against.
type BonusMetric string

const (
	MetricMonthlyRevenue  BonusMetric = "monthly_revenue"
	MetricMonthlyExpenses BonusMetric = "monthly_expenses"
	MetricTotalValue      BonusMetric = "total_value"
)

// CalculatedBonus is one concrete bonus of an active synergy, evaluated
// against the empire totals at recalculation time.
type CalculatedBonus struct {
	Metric        BonusMetric `json:"metric"`
	BaseMicros    int64       `json:"base_micros"`
	MultiplierBps int32       `json:"multiplier_bps"`
	ResultMicros  int64       `json:"result_micros"`
	Description   string      `json:"description"`
}

// ActiveSynergy is a catalog entry the empire currently satisfies. The
// list is fully derived: it is rebuilt, never patched, on every
// membership change. ActivatedAt survives rebuilds.
type ActiveSynergy struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Tier        int32             `json:"tier"`
	ActivatedAt time.Time         `json:"activated_at"`
	CompanyIDs  []string          `json:"company_ids"`
	Bonuses     []CalculatedBonus `json:"bonuses"`
}

// Empire is the per-player aggregate root: member companies, derived
// totals, active synergies and progression state. One empire per player.
type Empire struct {
	PlayerID              string          `json:"player_id"`
	Name                  string          `json:"name"`
	Companies             []Company       `json:"companies"`
	Synergies             []ActiveSynergy `json:"synergies"`
	TotalValueMicros      int64           `json:"total_value_micros"`
	MonthlyRevenueMicros  int64           `json:"monthly_revenue_micros"`
	MonthlyExpensesMicros int64           `json:"monthly_expenses_micros"`
	IndustryCount         int             `json:"industry_count"`
	Level                 int32           `json:"level"`
	XP                    int64           `json:"xp"`
	MultiplierBps         int32           `json:"multiplier_bps"`
	RecalculatedAt        time.Time       `json:"recalculated_at"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	// Version is the optimistic-concurrency token maintained by the
	// store. Zero for an empire that has never been saved.
	Version int64 `json:"-"`
}

// Frequency is how often a resource flow executes.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// FlowStatus is the resource-flow lifecycle state. Completed and
// cancelled are terminal.
type FlowStatus string

const (
	FlowActive    FlowStatus = "active"
	FlowPaused    FlowStatus = "paused"
	FlowCompleted FlowStatus = "completed"
	FlowCancelled FlowStatus = "cancelled"
)

// FlowEndpoint pins the company data a flow was created against, so the
// scheduler can process flows without loading the owning empire.
type FlowEndpoint struct {
	CompanyID string   `json:"company_id"`
	Name      string   `json:"name"`
	Industry  Industry `json:"industry"`
}

// Flow is a scheduled, possibly recurring, transfer of a resource
// quantity between two companies of the same empire. It is a peer entity
// owned by the player, not by the empire aggregate.
type Flow struct {
	ID                 string       `json:"id"`
	PlayerID           string       `json:"player_id"`
	Source             FlowEndpoint `json:"source"`
	Dest               FlowEndpoint `json:"dest"`
	Resource           ResourceKind `json:"resource"`
	QuantityUnits      int64        `json:"quantity_units"`
	PricePerUnitMicros int64        `json:"price_per_unit_micros"`
	TotalQuantityUnits int64        `json:"total_quantity_units"`
	TotalValueMicros   int64        `json:"total_value_micros"`
	Internal           bool         `json:"internal"`
	Frequency          Frequency    `json:"frequency"`
	Status             FlowStatus   `json:"status"`
	TransferCount      int64        `json:"transfer_count"`
	LastRunAt          *time.Time   `json:"last_run_at,omitempty"`
	NextRunAt          *time.Time   `json:"next_run_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`

	Version int64 `json:"-"`
}

// TransferResult reports one ProcessTransfer call. Processed is false
// when the flow was not in a runnable state; that is a report, not an
// error.
type TransferResult struct {
	Processed   bool       `json:"processed"`
	Reason      string     `json:"reason,omitempty"`
	ValueMicros int64      `json:"value_micros"`
	Completed   bool       `json:"completed"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
}

type AddCompanyInput struct {
	PlayerID      string
	CompanyID     string
	Name          string
	Industry      string
	Level         int32
	RevenueMicros int64
	ValueMicros   int64
}

// UpdateCompanyInput applies only the fields that are non-nil.
type UpdateCompanyInput struct {
	PlayerID      string
	CompanyID     string
	Name          *string
	Level         *int32
	RevenueMicros *int64
	ValueMicros   *int64
}

type XPResult struct {
	LeveledUp bool   `json:"leveled_up"`
	Level     int32  `json:"level"`
	LevelName string `json:"level_name"`
	XP        int64  `json:"xp"`
}

type CreateFlowInput struct {
	PlayerID           string
	SourceCompanyID    string
	DestCompanyID      string
	Resource           string
	QuantityUnits      int64
	PricePerUnitMicros int64
	Frequency          string
}

type SavingsView struct {
	FlowID             string `json:"flow_id"`
	MarketPriceMicros  int64  `json:"market_price_micros"`
	PricePerUnitMicros int64  `json:"price_per_unit_micros"`
	SavingsMicros      int64  `json:"savings_micros"`
}
