package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/finsim/plan-simulator/internal/domain"
)

// Input is the raw YAML document. Everything is referenced by string id;
// Build resolves those names into the dense numeric ids the engine uses.
type Input struct {
	Plan           PlanSpec      `yaml:"plan"`
	Simulation     Settings      `yaml:"simulation"`
	ReturnProfiles []ProfileSpec `yaml:"return_profiles"`
	Inflation      InflationSpec `yaml:"inflation"`
	Assets         []AssetSpec   `yaml:"assets"`
	Accounts       []AccountSpec `yaml:"accounts"`
	Taxes          TaxSpec       `yaml:"taxes"`
	Events         []EventSpec   `yaml:"events"`
}

// PlanSpec is the simulation window and the plan owner
type PlanSpec struct {
	StartDate     time.Time `yaml:"start_date"`
	DurationYears int       `yaml:"duration_years"`
	BirthDate     time.Time `yaml:"birth_date"`
}

// Settings controls the Monte Carlo batch
type Settings struct {
	Iterations int    `yaml:"iterations"`
	Seed       uint64 `yaml:"seed"`
}

// ProfileSpec describes one return distribution
type ProfileSpec struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Kind   string  `yaml:"kind"`
	Rate   float64 `yaml:"rate"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
}

// InflationSpec describes the inflation process
type InflationSpec struct {
	Kind   string  `yaml:"kind"`
	Rate   float64 `yaml:"rate"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
}

// AssetSpec binds a priced asset to a return profile
type AssetSpec struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	InitialPrice float64 `yaml:"initial_price"`
	Profile      string  `yaml:"profile"`
}

// LotSpec is one opening position in an account
type LotSpec struct {
	Asset        string          `yaml:"asset"`
	PurchaseDate time.Time       `yaml:"purchase_date"`
	Units        decimal.Decimal `yaml:"units"`
	CostBasis    decimal.Decimal `yaml:"cost_basis"`
}

// ContributionLimitSpec caps inflows per period
type ContributionLimitSpec struct {
	Amount decimal.Decimal `yaml:"amount"`
	Period string          `yaml:"period"`
}

// AccountSpec is one account at simulation start, or one created by an event
type AccountSpec struct {
	ID                string                 `yaml:"id"`
	Name              string                 `yaml:"name"`
	TaxStatus         string                 `yaml:"tax_status"`
	AssetClass        string                 `yaml:"asset_class"`
	CashBalance       decimal.Decimal        `yaml:"cash_balance"`
	LotMethod         string                 `yaml:"lot_method"`
	ReturnProfile     string                 `yaml:"return_profile"`
	ContributionLimit *ContributionLimitSpec `yaml:"contribution_limit"`
	Lots              []LotSpec              `yaml:"lots"`
}

// BracketSpec is one progressive bracket: income above threshold is taxed at
// rate until the next bracket's threshold
type BracketSpec struct {
	Threshold decimal.Decimal `yaml:"threshold"`
	Rate      decimal.Decimal `yaml:"rate"`
}

// TaxSpec is the plan's tax rules
type TaxSpec struct {
	FederalBrackets            []BracketSpec   `yaml:"federal_brackets"`
	StateRate                  decimal.Decimal `yaml:"state_rate"`
	CapitalGainsRate           decimal.Decimal `yaml:"capital_gains_rate"`
	EarlyWithdrawalPenaltyRate decimal.Decimal `yaml:"early_withdrawal_penalty_rate"`
}

// IntervalSpec is a calendar period
type IntervalSpec struct {
	Years  int `yaml:"years"`
	Months int `yaml:"months"`
	Days   int `yaml:"days"`
}

// TriggerSpec is a tagged union over every trigger type
type TriggerSpec struct {
	Type string `yaml:"type"`

	Date       time.Time `yaml:"date"`        // date
	Years      int       `yaml:"years"`       // age
	Months     int       `yaml:"months"`      // age
	Event      string    `yaml:"event"`       // relative
	OffsetDays int       `yaml:"offset_days"` // relative

	Account    string          `yaml:"account"`    // account_balance, asset_balance
	Asset      string          `yaml:"asset"`      // asset_balance
	Comparison string          `yaml:"comparison"` // balance triggers
	Threshold  decimal.Decimal `yaml:"threshold"`  // balance triggers

	Of []*TriggerSpec `yaml:"of"` // all, any

	Interval       IntervalSpec `yaml:"interval"`        // repeating
	Start          *TriggerSpec `yaml:"start"`           // repeating
	End            *TriggerSpec `yaml:"end"`             // repeating
	MaxOccurrences int          `yaml:"max_occurrences"` // repeating
}

// AmountSpec is a tagged union over the amount expression language
type AmountSpec struct {
	Type string `yaml:"type"`

	Value   decimal.Decimal `yaml:"value"`   // fixed
	Balance decimal.Decimal `yaml:"balance"` // target_to_balance
	Account string          `yaml:"account"` // balance reads
	Asset   string          `yaml:"asset"`   // asset_balance
	Factor  decimal.Decimal `yaml:"factor"`  // mul

	A      *AmountSpec `yaml:"a"`      // min, max, add, sub
	B      *AmountSpec `yaml:"b"`      // min, max, add, sub
	Amount *AmountSpec `yaml:"amount"` // mul
}

// EndpointSpec is one side of a transfer: an account, an asset position, or
// the world outside the plan
type EndpointSpec struct {
	External bool   `yaml:"external"`
	Account  string `yaml:"account"`
	Asset    string `yaml:"asset"`
}

// LimitsSpec caps what an event may move
type LimitsSpec struct {
	PerYear  *decimal.Decimal `yaml:"per_year"`
	Lifetime *decimal.Decimal `yaml:"lifetime"`
}

// EffectSpec is a tagged union over every effect type
type EffectSpec struct {
	Type string `yaml:"type"`

	From   *EndpointSpec `yaml:"from"`
	To     *EndpointSpec `yaml:"to"`
	Amount *AmountSpec   `yaml:"amount"`
	Mode   string        `yaml:"mode"`
	Limits *LimitsSpec   `yaml:"limits"`

	AdjustForInflation bool `yaml:"adjust_for_inflation"` // transfer, income, expense

	Account string          `yaml:"account"`
	Asset   string          `yaml:"asset"`
	Delta   decimal.Decimal `yaml:"delta"`

	Sources     []string `yaml:"sources"`     // sweep
	Destination string   `yaml:"destination"` // sweep

	Strategy string   `yaml:"strategy"` // withdraw
	Order    []string `yaml:"order"`    // withdraw
	Exclude  []string `yaml:"exclude"`  // withdraw

	Event    string       `yaml:"event"`       // event control
	StartAge int          `yaml:"start_age"`   // create_rmd
	Create   *AccountSpec `yaml:"new_account"` // create_account
}

// EventSpec pairs a trigger with its effects
type EventSpec struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name"`
	Once    bool          `yaml:"once"`
	Trigger *TriggerSpec  `yaml:"trigger"`
	Effects []*EffectSpec `yaml:"effects"`
}

// ValidationError carries every problem found in one pass over the input,
// so a bad file is fixed in one round trip instead of one error at a time.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// InputParser loads and validates plan files
type InputParser struct{}

// NewInputParser creates a plan file parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile reads a YAML plan file and builds the validated plan
func (p *InputParser) LoadFromFile(filename string) (*domain.Plan, Settings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, Settings{}, fmt.Errorf("reading %s: %w", filename, err)
	}
	return p.Load(data)
}

// Load parses YAML bytes and builds the validated plan
func (p *InputParser) Load(data []byte) (*domain.Plan, Settings, error) {
	var input Input
	if err := yaml.Unmarshal(data, &input); err != nil {
		return nil, Settings{}, fmt.Errorf("parsing plan: %w", err)
	}

	plan, err := Build(&input)
	if err != nil {
		return nil, Settings{}, err
	}

	settings := input.Simulation
	if settings.Iterations <= 0 {
		settings.Iterations = 1
	}
	return plan, settings, nil
}

// Build resolves the raw input into an engine-ready plan. All problems are
// collected into a single ValidationError.
func Build(input *Input) (*domain.Plan, error) {
	b := &builder{
		input:    input,
		accounts: make(map[string]domain.AccountID),
		assets:   make(map[string]domain.AssetID),
		events:   make(map[string]domain.EventID),
		profiles: make(map[string]domain.ProfileID),
	}
	plan := b.build()
	if len(b.problems) > 0 {
		sort.Strings(b.problems)
		return nil, &ValidationError{Problems: b.problems}
	}
	return plan, nil
}

type builder struct {
	input    *Input
	problems []string

	accounts map[string]domain.AccountID
	assets   map[string]domain.AssetID
	events   map[string]domain.EventID
	profiles map[string]domain.ProfileID
}

func (b *builder) problemf(format string, args ...interface{}) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

func (b *builder) build() *domain.Plan {
	in := b.input

	if in.Plan.StartDate.IsZero() {
		b.problemf("plan: start_date is required")
	}
	if in.Plan.BirthDate.IsZero() {
		b.problemf("plan: birth_date is required")
	}
	if in.Plan.DurationYears < 1 {
		b.problemf("plan: duration_years must be at least 1")
	}

	b.assignIDs()

	plan := &domain.Plan{
		StartDate:      in.Plan.StartDate,
		DurationYears:  in.Plan.DurationYears,
		BirthDate:      in.Plan.BirthDate,
		ReturnProfiles: b.buildProfiles(),
		Inflation:      b.buildInflation(),
		Assets:         b.buildAssets(),
		Accounts:       b.buildAccounts(),
		Taxes:          b.buildTaxes(),
		Events:         b.buildEvents(),
		RMDTable:       domain.UniformLifetime2024(),
		CollectLedger:  true,
	}
	b.checkEventCycles()
	return plan
}

// collectEventRefs gathers the event names a trigger waits on, recursing
// into composite and repeating conditions
func collectEventRefs(spec *TriggerSpec, out *[]string) {
	if spec == nil {
		return
	}
	switch spec.Type {
	case "relative", "event_ended":
		if spec.Event != "" {
			*out = append(*out, spec.Event)
		}
	}
	for _, child := range spec.Of {
		collectEventRefs(child, out)
	}
	collectEventRefs(spec.Start, out)
	collectEventRefs(spec.End, out)
}

// checkEventCycles rejects trigger reference cycles. Two events each waiting
// on the other can never fire, so the configuration is dead on arrival.
func (b *builder) checkEventCycles() {
	edges := make(map[string][]string, len(b.input.Events))
	for _, e := range b.input.Events {
		var refs []string
		collectEventRefs(e.Trigger, &refs)
		edges[e.ID] = refs
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(edges))
	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		for _, ref := range edges[id] {
			if _, known := b.events[ref]; !known {
				continue // unknown references are reported elsewhere
			}
			switch state[ref] {
			case 0:
				visit(ref)
			case visiting:
				b.problemf("event %q: trigger references form a cycle", ref)
			}
		}
		state[id] = done
	}

	ids := make([]string, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == 0 {
			visit(id)
		}
	}
}

// assignIDs hands out dense numeric ids in order of appearance, including
// accounts that only exist once a create_account effect runs, so forward
// references resolve.
func (b *builder) assignIDs() {
	for _, p := range b.input.ReturnProfiles {
		if p.ID == "" {
			b.problemf("return profile: id is required")
			continue
		}
		if _, dup := b.profiles[p.ID]; dup {
			b.problemf("return profile %q: duplicate id", p.ID)
			continue
		}
		b.profiles[p.ID] = domain.ProfileID(len(b.profiles) + 1)
	}

	for _, a := range b.input.Assets {
		if a.ID == "" {
			b.problemf("asset: id is required")
			continue
		}
		if _, dup := b.assets[a.ID]; dup {
			b.problemf("asset %q: duplicate id", a.ID)
			continue
		}
		b.assets[a.ID] = domain.AssetID(len(b.assets) + 1)
	}

	registerAccount := func(id string) {
		if id == "" {
			b.problemf("account: id is required")
			return
		}
		if _, dup := b.accounts[id]; dup {
			b.problemf("account %q: duplicate id", id)
			return
		}
		b.accounts[id] = domain.AccountID(len(b.accounts) + 1)
	}
	for _, a := range b.input.Accounts {
		registerAccount(a.ID)
	}
	for _, e := range b.input.Events {
		for _, eff := range e.Effects {
			if eff != nil && eff.Type == "create_account" && eff.Create != nil {
				registerAccount(eff.Create.ID)
			}
		}
	}

	for _, e := range b.input.Events {
		if e.ID == "" {
			b.problemf("event: id is required")
			continue
		}
		if _, dup := b.events[e.ID]; dup {
			b.problemf("event %q: duplicate id", e.ID)
			continue
		}
		b.events[e.ID] = domain.EventID(len(b.events) + 1)
	}
}

func (b *builder) profileKind(raw, path string) domain.ReturnProfileKind {
	switch raw {
	case "", "none":
		return domain.ProfileNone
	case "fixed":
		return domain.ProfileFixed
	case "normal":
		return domain.ProfileNormal
	case "log_normal":
		return domain.ProfileLogNormal
	default:
		b.problemf("%s: unknown kind %q", path, raw)
		return domain.ProfileNone
	}
}

func (b *builder) buildProfiles() []domain.ReturnProfile {
	out := make([]domain.ReturnProfile, 0, len(b.input.ReturnProfiles))
	for _, p := range b.input.ReturnProfiles {
		id, ok := b.profiles[p.ID]
		if !ok {
			continue
		}
		path := fmt.Sprintf("return profile %q", p.ID)
		kind := b.profileKind(p.Kind, path)
		if kind == domain.ProfileNormal || kind == domain.ProfileLogNormal {
			if p.StdDev < 0 {
				b.problemf("%s: std_dev cannot be negative", path)
			}
		}
		out = append(out, domain.ReturnProfile{
			ID:     id,
			Name:   p.Name,
			Kind:   kind,
			Rate:   p.Rate,
			Mean:   p.Mean,
			StdDev: p.StdDev,
		})
	}
	return out
}

func (b *builder) buildInflation() domain.InflationProfile {
	in := b.input.Inflation
	return domain.InflationProfile{
		Kind:   b.profileKind(in.Kind, "inflation"),
		Rate:   in.Rate,
		Mean:   in.Mean,
		StdDev: in.StdDev,
	}
}

func (b *builder) buildAssets() []domain.AssetSpec {
	out := make([]domain.AssetSpec, 0, len(b.input.Assets))
	for _, a := range b.input.Assets {
		id, ok := b.assets[a.ID]
		if !ok {
			continue
		}
		path := fmt.Sprintf("asset %q", a.ID)
		if a.InitialPrice <= 0 {
			b.problemf("%s: initial_price must be positive", path)
		}
		profile, ok := b.profiles[a.Profile]
		if !ok {
			b.problemf("%s: unknown return profile %q", path, a.Profile)
			continue
		}
		out = append(out, domain.AssetSpec{
			ID:           id,
			Name:         a.Name,
			InitialPrice: a.InitialPrice,
			Profile:      profile,
		})
	}
	return out
}

func (b *builder) taxStatus(raw, path string) domain.TaxStatus {
	switch raw {
	case "taxable", "":
		return domain.Taxable
	case "tax_deferred":
		return domain.TaxDeferred
	case "tax_free":
		return domain.TaxFree
	case "illiquid":
		return domain.Illiquid
	default:
		b.problemf("%s: unknown tax_status %q", path, raw)
		return domain.Taxable
	}
}

func (b *builder) assetClass(raw, path string) domain.AssetClass {
	switch raw {
	case "cash", "":
		return domain.Cash
	case "investable":
		return domain.Investable
	case "real_estate":
		return domain.RealEstate
	case "depreciating":
		return domain.Depreciating
	case "liability":
		return domain.Liability
	default:
		b.problemf("%s: unknown asset_class %q", path, raw)
		return domain.Cash
	}
}

func (b *builder) lotMethod(raw, path string) domain.LotMethod {
	switch raw {
	case "":
		return ""
	case "fifo":
		return domain.FIFO
	case "lifo":
		return domain.LIFO
	case "highest_cost":
		return domain.HighestCost
	case "lowest_cost":
		return domain.LowestCost
	case "average_cost":
		return domain.AverageCost
	default:
		b.problemf("%s: unknown lot_method %q", path, raw)
		return ""
	}
}

func (b *builder) buildAccount(spec AccountSpec) (domain.Account, bool) {
	id, ok := b.accounts[spec.ID]
	if !ok {
		return domain.Account{}, false
	}
	path := fmt.Sprintf("account %q", spec.ID)

	acct := domain.Account{
		ID:          id,
		Name:        spec.Name,
		TaxStatus:   b.taxStatus(spec.TaxStatus, path),
		AssetClass:  b.assetClass(spec.AssetClass, path),
		CashBalance: spec.CashBalance,
		LotMethod:   b.lotMethod(spec.LotMethod, path),
	}
	if acct.Name == "" {
		acct.Name = spec.ID
	}
	if spec.CashBalance.IsNegative() {
		b.problemf("%s: cash_balance cannot be negative", path)
	}

	if spec.ReturnProfile != "" {
		profile, ok := b.profiles[spec.ReturnProfile]
		if !ok {
			b.problemf("%s: unknown return profile %q", path, spec.ReturnProfile)
		} else {
			acct.ReturnProfile = &profile
		}
	}

	if spec.ContributionLimit != nil {
		period := domain.Yearly
		switch spec.ContributionLimit.Period {
		case "monthly":
			period = domain.Monthly
		case "yearly", "":
		default:
			b.problemf("%s: unknown contribution period %q", path, spec.ContributionLimit.Period)
		}
		if !spec.ContributionLimit.Amount.IsPositive() {
			b.problemf("%s: contribution limit must be positive", path)
		}
		acct.ContributionLimit = &domain.ContributionLimit{
			Amount: spec.ContributionLimit.Amount,
			Period: period,
		}
	}

	for _, lot := range spec.Lots {
		if !acct.HoldsAssets() {
			b.problemf("%s: only investable and real_estate accounts hold lots", path)
			break
		}
		assetID, ok := b.assets[lot.Asset]
		if !ok {
			b.problemf("%s: lot references unknown asset %q", path, lot.Asset)
			continue
		}
		if !lot.Units.IsPositive() {
			b.problemf("%s: lot of %q needs positive units", path, lot.Asset)
		}
		if lot.CostBasis.IsNegative() {
			b.problemf("%s: lot of %q cannot have negative cost_basis", path, lot.Asset)
		}
		acct.Lots = append(acct.Lots, domain.AssetLot{
			AssetID:      assetID,
			PurchaseDate: lot.PurchaseDate,
			Units:        lot.Units,
			CostBasis:    lot.CostBasis,
		})
	}

	return acct, true
}

func (b *builder) buildAccounts() []domain.Account {
	out := make([]domain.Account, 0, len(b.input.Accounts))
	for _, spec := range b.input.Accounts {
		if acct, ok := b.buildAccount(spec); ok {
			out = append(out, acct)
		}
	}
	return out
}

func (b *builder) buildTaxes() domain.TaxConfig {
	in := b.input.Taxes
	config := domain.TaxConfig{
		StateRate:                  in.StateRate,
		CapitalGainsRate:           in.CapitalGainsRate,
		EarlyWithdrawalPenaltyRate: in.EarlyWithdrawalPenaltyRate,
	}

	one := decimal.NewFromInt(1)
	for i, br := range in.FederalBrackets {
		if br.Rate.IsNegative() || br.Rate.GreaterThanOrEqual(one) {
			b.problemf("taxes: bracket %d rate must be in [0, 1)", i)
		}
		if i == 0 {
			if !br.Threshold.IsZero() {
				b.problemf("taxes: the first bracket must start at 0")
			}
		} else if br.Threshold.LessThanOrEqual(in.FederalBrackets[i-1].Threshold) {
			b.problemf("taxes: bracket %d threshold must exceed the previous one", i)
		}
		config.FederalBrackets = append(config.FederalBrackets, domain.TaxBracket{
			Threshold: br.Threshold,
			Rate:      br.Rate,
		})
	}

	for _, rate := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"state_rate", in.StateRate},
		{"capital_gains_rate", in.CapitalGainsRate},
		{"early_withdrawal_penalty_rate", in.EarlyWithdrawalPenaltyRate},
	} {
		if rate.value.IsNegative() || rate.value.GreaterThanOrEqual(one) {
			b.problemf("taxes: %s must be in [0, 1)", rate.name)
		}
	}
	return config
}

func (b *builder) accountRef(name, path string) (domain.AccountID, bool) {
	id, ok := b.accounts[name]
	if !ok {
		b.problemf("%s: unknown account %q", path, name)
	}
	return id, ok
}

func (b *builder) assetRef(account, asset, path string) (domain.AssetCoord, bool) {
	acctID, ok := b.accountRef(account, path)
	if !ok {
		return domain.AssetCoord{}, false
	}
	assetID, ok := b.assets[asset]
	if !ok {
		b.problemf("%s: unknown asset %q", path, asset)
		return domain.AssetCoord{}, false
	}
	return domain.AssetCoord{AccountID: acctID, AssetID: assetID}, true
}

func (b *builder) eventRef(name, path string) (domain.EventID, bool) {
	id, ok := b.events[name]
	if !ok {
		b.problemf("%s: unknown event %q", path, name)
	}
	return id, ok
}

func (b *builder) comparison(raw, path string) domain.Comparison {
	switch raw {
	case "gte", "":
		return domain.GTE
	case "lte":
		return domain.LTE
	default:
		b.problemf("%s: comparison must be gte or lte, got %q", path, raw)
		return domain.GTE
	}
}

func (b *builder) buildTrigger(spec *TriggerSpec, path string) domain.EventTrigger {
	if spec == nil {
		b.problemf("%s: trigger is required", path)
		return domain.ManualTrigger{}
	}

	switch spec.Type {
	case "date":
		if spec.Date.IsZero() {
			b.problemf("%s: date trigger needs a date", path)
		}
		return domain.DateTrigger{Date: spec.Date}

	case "age":
		if spec.Years < 0 || spec.Months < 0 || spec.Months > 11 {
			b.problemf("%s: age trigger needs years >= 0 and months in [0, 11]", path)
		}
		return domain.AgeTrigger{Years: spec.Years, Months: spec.Months}

	case "relative":
		id, ok := b.eventRef(spec.Event, path)
		if !ok {
			return domain.ManualTrigger{}
		}
		return domain.RelativeTrigger{EventID: id, OffsetDays: spec.OffsetDays}

	case "event_ended":
		id, ok := b.eventRef(spec.Event, path)
		if !ok {
			return domain.ManualTrigger{}
		}
		return domain.EventEndedTrigger{EventID: id}

	case "account_balance":
		id, ok := b.accountRef(spec.Account, path)
		if !ok {
			return domain.ManualTrigger{}
		}
		return domain.AccountBalanceTrigger{
			AccountID:  id,
			Comparison: b.comparison(spec.Comparison, path),
			Threshold:  spec.Threshold,
		}

	case "asset_balance":
		coord, ok := b.assetRef(spec.Account, spec.Asset, path)
		if !ok {
			return domain.ManualTrigger{}
		}
		return domain.AssetBalanceTrigger{
			Coord:      coord,
			Comparison: b.comparison(spec.Comparison, path),
			Threshold:  spec.Threshold,
		}

	case "net_worth":
		return domain.NetWorthTrigger{
			Comparison: b.comparison(spec.Comparison, path),
			Threshold:  spec.Threshold,
		}

	case "all", "any":
		if len(spec.Of) == 0 {
			b.problemf("%s: %s trigger needs at least one child", path, spec.Type)
		}
		children := make([]domain.EventTrigger, 0, len(spec.Of))
		for i, child := range spec.Of {
			children = append(children, b.buildCondition(child, fmt.Sprintf("%s: child %d", path, i)))
		}
		if spec.Type == "all" {
			return domain.AndTrigger{Triggers: children}
		}
		return domain.OrTrigger{Triggers: children}

	case "repeating":
		interval := domain.Interval{
			Years:  spec.Interval.Years,
			Months: spec.Interval.Months,
			Days:   spec.Interval.Days,
		}
		if interval.IsZero() {
			b.problemf("%s: repeating trigger needs a non-zero interval", path)
		}
		if spec.Interval.Years < 0 || spec.Interval.Months < 0 || spec.Interval.Days < 0 {
			b.problemf("%s: repeating interval cannot be negative", path)
		}
		tr := domain.RepeatingTrigger{
			Interval:       interval,
			MaxOccurrences: spec.MaxOccurrences,
		}
		if spec.Start != nil {
			tr.StartCondition = b.buildCondition(spec.Start, path+": start")
		}
		if spec.End != nil {
			tr.EndCondition = b.buildCondition(spec.End, path+": end")
		}
		return tr

	case "manual":
		return domain.ManualTrigger{}

	default:
		b.problemf("%s: unknown trigger type %q", path, spec.Type)
		return domain.ManualTrigger{}
	}
}

// buildCondition builds a trigger in a position where only conditions are
// legal (nested under all/any or a repeating start/end)
func (b *builder) buildCondition(spec *TriggerSpec, path string) domain.EventTrigger {
	if spec != nil && spec.Type == "repeating" {
		b.problemf("%s: a repeating trigger cannot be used as a condition", path)
		return domain.ManualTrigger{}
	}
	return b.buildTrigger(spec, path)
}

func (b *builder) buildAmount(spec *AmountSpec, path string) domain.TransferAmount {
	if spec == nil {
		b.problemf("%s: amount is required", path)
		return domain.FixedAmount{Value: decimal.Zero}
	}

	pair := func(kind string) (domain.TransferAmount, domain.TransferAmount) {
		if spec.A == nil || spec.B == nil {
			b.problemf("%s: %s needs both a and b", path, kind)
		}
		return b.buildOptionalAmount(spec.A, path+": a"), b.buildOptionalAmount(spec.B, path+": b")
	}

	switch spec.Type {
	case "fixed":
		if spec.Value.IsNegative() {
			b.problemf("%s: fixed amount cannot be negative", path)
		}
		return domain.FixedAmount{Value: spec.Value}

	case "source_balance":
		return domain.SourceBalanceAmount{}

	case "zero_target_balance":
		return domain.ZeroTargetBalanceAmount{}

	case "target_to_balance":
		return domain.TargetToBalanceAmount{Balance: spec.Balance}

	case "asset_balance":
		coord, ok := b.assetRef(spec.Account, spec.Asset, path)
		if !ok {
			return domain.FixedAmount{Value: decimal.Zero}
		}
		return domain.AssetBalanceAmount{Coord: coord}

	case "account_total":
		id, ok := b.accountRef(spec.Account, path)
		if !ok {
			return domain.FixedAmount{Value: decimal.Zero}
		}
		return domain.AccountTotalBalanceAmount{AccountID: id}

	case "account_cash":
		id, ok := b.accountRef(spec.Account, path)
		if !ok {
			return domain.FixedAmount{Value: decimal.Zero}
		}
		return domain.AccountCashBalanceAmount{AccountID: id}

	case "min":
		x, y := pair("min")
		return domain.MinAmount{A: x, B: y}
	case "max":
		x, y := pair("max")
		return domain.MaxAmount{A: x, B: y}
	case "add":
		x, y := pair("add")
		return domain.AddAmount{A: x, B: y}
	case "sub":
		x, y := pair("sub")
		return domain.SubAmount{A: x, B: y}

	case "mul":
		if spec.Amount == nil {
			b.problemf("%s: mul needs an inner amount", path)
		}
		return domain.MulAmount{
			Amount: b.buildOptionalAmount(spec.Amount, path+": amount"),
			Factor: spec.Factor,
		}

	default:
		b.problemf("%s: unknown amount type %q", path, spec.Type)
		return domain.FixedAmount{Value: decimal.Zero}
	}
}

// amountUsesType reports whether an amount expression contains any of the
// given node types anywhere in its tree.
func amountUsesType(spec *AmountSpec, types ...string) bool {
	if spec == nil {
		return false
	}
	for _, t := range types {
		if spec.Type == t {
			return true
		}
	}
	return amountUsesType(spec.A, types...) ||
		amountUsesType(spec.B, types...) ||
		amountUsesType(spec.Amount, types...)
}

func (b *builder) buildOptionalAmount(spec *AmountSpec, path string) domain.TransferAmount {
	if spec == nil {
		return domain.FixedAmount{Value: decimal.Zero}
	}
	return b.buildAmount(spec, path)
}

func (b *builder) buildEndpoint(spec *EndpointSpec, path string) domain.TransferEndpoint {
	if spec == nil {
		b.problemf("%s: endpoint is required", path)
		return domain.ExternalEndpoint{}
	}
	if spec.External {
		if spec.Account != "" || spec.Asset != "" {
			b.problemf("%s: an external endpoint names no account", path)
		}
		return domain.ExternalEndpoint{}
	}
	if spec.Account == "" {
		b.problemf("%s: endpoint needs an account or external: true", path)
		return domain.ExternalEndpoint{}
	}
	if spec.Asset != "" {
		coord, ok := b.assetRef(spec.Account, spec.Asset, path)
		if !ok {
			return domain.ExternalEndpoint{}
		}
		return domain.AssetEndpoint{Coord: coord}
	}
	id, ok := b.accountRef(spec.Account, path)
	if !ok {
		return domain.ExternalEndpoint{}
	}
	return domain.AccountEndpoint{AccountID: id}
}

func (b *builder) buildLimits(spec *LimitsSpec, path string) *domain.FlowLimits {
	if spec == nil {
		return nil
	}
	limits := &domain.FlowLimits{PerYear: spec.PerYear, Lifetime: spec.Lifetime}
	if spec.PerYear != nil && !spec.PerYear.IsPositive() {
		b.problemf("%s: per_year limit must be positive", path)
	}
	if spec.Lifetime != nil && !spec.Lifetime.IsPositive() {
		b.problemf("%s: lifetime limit must be positive", path)
	}
	return limits
}

func (b *builder) incomeMode(raw, path string) domain.IncomeMode {
	switch raw {
	case "gross", "":
		return domain.Gross
	case "net":
		return domain.Net
	default:
		b.problemf("%s: mode must be gross or net, got %q", path, raw)
		return domain.Gross
	}
}

func (b *builder) withdrawalStrategy(raw, path string) domain.WithdrawalStrategy {
	switch raw {
	case "tax_efficient_early", "":
		return domain.TaxEfficientEarly
	case "tax_deferred_first":
		return domain.TaxDeferredFirst
	case "tax_free_first":
		return domain.TaxFreeFirst
	case "pro_rata":
		return domain.ProRata
	case "custom":
		return domain.CustomOrder
	default:
		b.problemf("%s: unknown withdrawal strategy %q", path, raw)
		return domain.TaxEfficientEarly
	}
}

func (b *builder) buildEffect(spec *EffectSpec, path string) (domain.EventEffect, bool) {
	if spec == nil {
		b.problemf("%s: effect is required", path)
		return nil, false
	}

	switch spec.Type {
	case "transfer":
		from := b.buildEndpoint(spec.From, path+": from")
		to := b.buildEndpoint(spec.To, path+": to")
		if spec.From != nil && spec.To != nil && spec.From.External && spec.To.External {
			b.problemf("%s: transfer cannot run external to external", path)
		}
		if spec.From != nil && spec.From.External && amountUsesType(spec.Amount, "source_balance") {
			b.problemf("%s: source_balance cannot read an external endpoint", path)
		}
		if spec.To != nil && spec.To.External &&
			amountUsesType(spec.Amount, "zero_target_balance", "target_to_balance") {
			b.problemf("%s: target balance amounts cannot read an external endpoint", path)
		}
		return domain.TransferEffect{
			From:               from,
			To:                 to,
			Amount:             b.buildAmount(spec.Amount, path+": amount"),
			Limits:             b.buildLimits(spec.Limits, path),
			AdjustForInflation: spec.AdjustForInflation,
		}, true

	case "income":
		id, ok := b.accountRef(spec.Account, path)
		if !ok {
			return nil, false
		}
		return domain.IncomeEffect{
			To:                 id,
			Amount:             b.buildAmount(spec.Amount, path+": amount"),
			Mode:               b.incomeMode(spec.Mode, path),
			Limits:             b.buildLimits(spec.Limits, path),
			AdjustForInflation: spec.AdjustForInflation,
		}, true

	case "expense":
		id, ok := b.accountRef(spec.Account, path)
		if !ok {
			return nil, false
		}
		return domain.ExpenseEffect{
			From:               id,
			Amount:             b.buildAmount(spec.Amount, path+": amount"),
			Limits:             b.buildLimits(spec.Limits, path),
			AdjustForInflation: spec.AdjustForInflation,
		}, true

	case "liquidate":
		coord, ok := b.assetRef(spec.Account, spec.Asset, path)
		if !ok {
			return nil, false
		}
		return domain.LiquidateEffect{
			Coord:  coord,
			Amount: b.buildAmount(spec.Amount, path+": amount"),
			Mode:   b.incomeMode(spec.Mode, path),
		}, true

	case "purchase":
		coord, ok := b.assetRef(spec.Account, spec.Asset, path)
		if !ok {
			return nil, false
		}
		return domain.PurchaseEffect{
			Coord:  coord,
			Amount: b.buildAmount(spec.Amount, path+": amount"),
		}, true

	case "sweep":
		if len(spec.Sources) == 0 {
			b.problemf("%s: sweep needs at least one source", path)
		}
		sources := make([]domain.AccountID, 0, len(spec.Sources))
		for _, name := range spec.Sources {
			if id, ok := b.accountRef(name, path); ok {
				sources = append(sources, id)
			}
		}
		dest, ok := b.accountRef(spec.Destination, path)
		if !ok {
			return nil, false
		}
		return domain.SweepEffect{Sources: sources, Destination: dest}, true

	case "withdraw":
		strategy := b.withdrawalStrategy(spec.Strategy, path)
		sources := domain.WithdrawalSources{Strategy: strategy}
		if strategy == domain.CustomOrder && len(spec.Order) == 0 {
			b.problemf("%s: a custom withdrawal needs an order", path)
		}
		for _, name := range spec.Order {
			if id, ok := b.accountRef(name, path); ok {
				sources.Order = append(sources.Order, id)
			}
		}
		for _, name := range spec.Exclude {
			if id, ok := b.accountRef(name, path); ok {
				sources.Exclude = append(sources.Exclude, id)
			}
		}
		return domain.WithdrawEffect{
			Amount:  b.buildAmount(spec.Amount, path+": amount"),
			Sources: sources,
		}, true

	case "create_account":
		if spec.Create == nil {
			b.problemf("%s: create_account needs a new_account block", path)
			return nil, false
		}
		acct, ok := b.buildAccount(*spec.Create)
		if !ok {
			return nil, false
		}
		return domain.CreateAccountEffect{Account: acct}, true

	case "delete_account":
		id, ok := b.accountRef(spec.Account, path)
		if !ok {
			return nil, false
		}
		return domain.DeleteAccountEffect{AccountID: id}, true

	case "trigger_event", "pause_event", "resume_event", "terminate_event":
		id, ok := b.eventRef(spec.Event, path)
		if !ok {
			return nil, false
		}
		switch spec.Type {
		case "trigger_event":
			return domain.TriggerEventEffect{EventID: id}, true
		case "pause_event":
			return domain.PauseEventEffect{EventID: id}, true
		case "resume_event":
			return domain.ResumeEventEffect{EventID: id}, true
		default:
			return domain.TerminateEventEffect{EventID: id}, true
		}

	case "create_rmd":
		id, ok := b.accountRef(spec.Account, path)
		if !ok {
			return nil, false
		}
		if acct := b.inputAccount(spec.Account); acct != nil && acct.TaxStatus != "tax_deferred" {
			b.problemf("%s: required distributions only apply to tax_deferred accounts", path)
		}
		startAge := spec.StartAge
		if startAge == 0 {
			startAge = domain.UniformLifetime2024().FirstAge
		}
		return domain.CreateRMDWithdrawalEffect{AccountID: id, StartAge: startAge}, true

	case "apply_rmd":
		return domain.ApplyRMDEffect{}, true

	case "adjust_balance":
		id, ok := b.accountRef(spec.Account, path)
		if !ok {
			return nil, false
		}
		return domain.AdjustBalanceEffect{AccountID: id, Delta: spec.Delta}, true

	default:
		b.problemf("%s: unknown effect type %q", path, spec.Type)
		return nil, false
	}
}

// inputAccount finds the raw spec for an account name, including ones nested
// in create_account effects
func (b *builder) inputAccount(name string) *AccountSpec {
	for i := range b.input.Accounts {
		if b.input.Accounts[i].ID == name {
			return &b.input.Accounts[i]
		}
	}
	for _, e := range b.input.Events {
		for _, eff := range e.Effects {
			if eff != nil && eff.Type == "create_account" && eff.Create != nil && eff.Create.ID == name {
				return eff.Create
			}
		}
	}
	return nil
}

func (b *builder) buildEvents() []domain.Event {
	out := make([]domain.Event, 0, len(b.input.Events))
	for _, spec := range b.input.Events {
		id, ok := b.events[spec.ID]
		if !ok {
			continue
		}
		path := fmt.Sprintf("event %q", spec.ID)

		event := domain.Event{
			ID:      id,
			Name:    spec.Name,
			Once:    spec.Once,
			Trigger: b.buildTrigger(spec.Trigger, path),
		}
		if event.Name == "" {
			event.Name = spec.ID
		}
		if len(spec.Effects) == 0 {
			b.problemf("%s: needs at least one effect", path)
		}
		for i, effSpec := range spec.Effects {
			if eff, ok := b.buildEffect(effSpec, fmt.Sprintf("%s: effect %d", path, i)); ok {
				event.Effects = append(event.Effects, eff)
			}
		}
		out = append(out, event)
	}
	return out
}
