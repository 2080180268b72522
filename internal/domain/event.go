package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a trigger paired with an ordered list of effects. Once limits the
// event to a single firing; Repeating triggers ignore it.
type Event struct {
	ID      EventID
	Name    string
	Trigger EventTrigger
	Effects []EventEffect
	Once    bool
}

// Comparison is the direction of a balance threshold test
type Comparison string

const (
	GTE Comparison = "gte"
	LTE Comparison = "lte"
)

// Interval is a calendar period for repeating triggers
type Interval struct {
	Years  int
	Months int
	Days   int
}

// AddTo advances a date by the interval
func (iv Interval) AddTo(date time.Time) time.Time {
	return date.AddDate(iv.Years, iv.Months, iv.Days)
}

// IsZero reports whether the interval advances time at all
func (iv Interval) IsZero() bool {
	return iv.Years == 0 && iv.Months == 0 && iv.Days == 0
}

// EventTrigger is the closed set of conditions that can fire an event.
// Implementations are value types; the marker method keeps the set closed.
type EventTrigger interface {
	isTrigger()
}

// DateTrigger fires once the simulation reaches a calendar date
type DateTrigger struct {
	Date time.Time
}

// AgeTrigger fires once the plan owner reaches an age
type AgeTrigger struct {
	Years  int
	Months int
}

// RelativeTrigger fires a number of days after another event fires
type RelativeTrigger struct {
	EventID    EventID
	OffsetDays int
}

// EventEndedTrigger fires once another event can never fire again: it was
// terminated, or its repeating series ran out
type EventEndedTrigger struct {
	EventID EventID
}

// AccountBalanceTrigger fires when an account's total value crosses a threshold
type AccountBalanceTrigger struct {
	AccountID  AccountID
	Comparison Comparison
	Threshold  decimal.Decimal
}

// AssetBalanceTrigger fires when one asset position's value crosses a threshold
type AssetBalanceTrigger struct {
	Coord      AssetCoord
	Comparison Comparison
	Threshold  decimal.Decimal
}

// NetWorthTrigger fires when total net worth crosses a threshold
type NetWorthTrigger struct {
	Comparison Comparison
	Threshold  decimal.Decimal
}

// AndTrigger fires when every child condition holds
type AndTrigger struct {
	Triggers []EventTrigger
}

// OrTrigger fires when any child condition holds
type OrTrigger struct {
	Triggers []EventTrigger
}

// RepeatingTrigger fires on a schedule. The series activates when
// StartCondition holds (immediately when nil), fires, and then fires every
// Interval until EndCondition holds or MaxOccurrences is reached. The end
// condition is checked before anything else so an expired series never
// fires or schedules past its end.
type RepeatingTrigger struct {
	Interval       Interval
	StartCondition EventTrigger
	EndCondition   EventTrigger
	MaxOccurrences int
}

// ManualTrigger never fires on its own; only a TriggerEventEffect fires it
type ManualTrigger struct{}

func (DateTrigger) isTrigger()           {}
func (AgeTrigger) isTrigger()            {}
func (RelativeTrigger) isTrigger()       {}
func (EventEndedTrigger) isTrigger()     {}
func (AccountBalanceTrigger) isTrigger() {}
func (AssetBalanceTrigger) isTrigger()   {}
func (NetWorthTrigger) isTrigger()       {}
func (AndTrigger) isTrigger()            {}
func (OrTrigger) isTrigger()             {}
func (RepeatingTrigger) isTrigger()      {}
func (ManualTrigger) isTrigger()         {}

/// TransferEndpoint is one side of a money movement: an account's cash, a
// specific asset position, or the world outside the plan.
type TransferEndpoint interface {
	isEndpoint()
}

// AccountEndpoint targets an account's cash balance
type AccountEndpoint struct {
	AccountID AccountID
}

// AssetEndpoint targets a specific asset position
type AssetEndpoint struct {
	Coord AssetCoord
}

// ExternalEndpoint is the boundary of the plan: income arrives from it,
// expenses leave to it. It has no balance.
type ExternalEndpoint struct{}

func (AccountEndpoint) isEndpoint()  {}
func (AssetEndpoint) isEndpoint()    {}
func (ExternalEndpoint) isEndpoint() {}

// TransferAmount is a small expression language evaluated against live
// simulation state when an effect executes.
type TransferAmount interface {
	isAmount()
}

// FixedAmount is a constant dollar amount
type FixedAmount struct {
	Value decimal.Decimal
}

// SourceBalanceAmount is the full balance of the transfer source
type SourceBalanceAmount struct{}

// ZeroTargetBalanceAmount is whatever amount brings the target to zero,
// used to pay off liabilities exactly
type ZeroTargetBalanceAmount struct{}

// TargetToBalanceAmount is the shortfall between the target's balance and a
// goal balance, floored at zero
type TargetToBalanceAmount struct {
	Balance decimal.Decimal
}

// AssetBalanceAmount is the current value of an asset position
type AssetBalanceAmount struct {
	Coord AssetCoord
}

// AccountTotalBalanceAmount is an account's total value, cash plus assets
type AccountTotalBalanceAmount struct {
	AccountID AccountID
}

// AccountCashBalanceAmount is an account's cash component only
type AccountCashBalanceAmount struct {
	AccountID AccountID
}

// MinAmount is the smaller of two amounts
type MinAmount struct {
	A, B TransferAmount
}

// MaxAmount is the larger of two amounts
type MaxAmount struct {
	A, B TransferAmount
}

// AddAmount is the sum of two amounts
type AddAmount struct {
	A, B TransferAmount
}

// SubAmount is the difference of two amounts
type SubAmount struct {
	A, B TransferAmount
}

// MulAmount scales an amount by a constant factor
type MulAmount struct {
	Amount TransferAmount
	Factor decimal.Decimal
}

func (FixedAmount) isAmount()               {}
func (SourceBalanceAmount) isAmount()       {}
func (ZeroTargetBalanceAmount) isAmount()   {}
func (TargetToBalanceAmount) isAmount()     {}
func (AssetBalanceAmount) isAmount()        {}
func (AccountTotalBalanceAmount) isAmount() {}
func (AccountCashBalanceAmount) isAmount()  {}
func (MinAmount) isAmount()                 {}
func (MaxAmount) isAmount()                 {}
func (AddAmount) isAmount()                 {}
func (SubAmount) isAmount()                 {}
func (MulAmount) isAmount()                 {}

// UpTo moves at most x, limited by the source balance
func UpTo(x decimal.Decimal) TransferAmount {
	return MinAmount{A: FixedAmount{Value: x}, B: SourceBalanceAmount{}}
}

// ExcessAbove moves whatever the source holds beyond a reserve
func ExcessAbove(reserve decimal.Decimal) TransferAmount {
	return MaxAmount{
		A: FixedAmount{Value: decimal.Zero},
		B: SubAmount{A: SourceBalanceAmount{}, B: FixedAmount{Value: reserve}},
	}
}

// IncomeMode distinguishes whether an income amount is pre- or post-tax
type IncomeMode string

const (
	// Gross income is taxed; the account receives the amount less taxes
	Gross IncomeMode = "gross"
	// Net income is the amount the account must receive; the taxable gross
	// is estimated by the bracket-aware gross-up
	Net IncomeMode = "net"
)

// FlowLimits caps the total an event may move per year and over its lifetime
type FlowLimits struct {
	PerYear  *decimal.Decimal
	Lifetime *decimal.Decimal
}

// WithdrawalStrategy orders accounts for multi-account withdrawals
type WithdrawalStrategy string

const (
	// TaxEfficientEarly drains Taxable, then TaxDeferred, then TaxFree
	TaxEfficientEarly WithdrawalStrategy = "tax_efficient_early"
	TaxDeferredFirst  WithdrawalStrategy = "tax_deferred_first"
	TaxFreeFirst      WithdrawalStrategy = "tax_free_first"
	// ProRata draws from all eligible accounts proportionally to balance
	ProRata WithdrawalStrategy = "pro_rata"
	// CustomOrder draws from an explicit ordered account list
	CustomOrder WithdrawalStrategy = "custom"
)

// WithdrawalSources selects and orders the accounts a withdrawal draws on.
// Illiquid accounts are always excluded regardless of configuration.
type WithdrawalSources struct {
	Strategy WithdrawalStrategy
	Order    []AccountID // used by CustomOrder
	Exclude  []AccountID
}

// EventEffect is the closed set of state mutations an event can request.
// Effects execute in declared order.
type EventEffect interface {
	isEffect()
}

// CreateAccountEffect adds a new account mid-simulation
type CreateAccountEffect struct {
	Account Account
}

// DeleteAccountEffect removes an account mid-simulation
type DeleteAccountEffect struct {
	AccountID AccountID
}

// TransferEffect moves money between two endpoints. AdjustForInflation
// scales the amount by the cumulative price level at execution time, so a
// fixed figure keeps its purchasing power across the run.
type TransferEffect struct {
	From               TransferEndpoint
	To                 TransferEndpoint
	Amount             TransferAmount
	Limits             *FlowLimits
	AdjustForInflation bool
}

// IncomeEffect credits an account from outside the plan, taxed as ordinary
// income per Mode
type IncomeEffect struct {
	To                 AccountID
	Amount             TransferAmount
	Mode               IncomeMode
	Limits             *FlowLimits
	AdjustForInflation bool
}

// ExpenseEffect debits an account to outside the plan
type ExpenseEffect struct {
	From               AccountID
	Amount             TransferAmount
	Limits             *FlowLimits
	AdjustForInflation bool
}

// LiquidateEffect sells an asset position for cash in the same account.
// When Net, Amount is the after-tax cash required and the gross sale is
// estimated from the position's embedded gain.
type LiquidateEffect struct {
	Coord  AssetCoord
	Amount TransferAmount
	Mode   IncomeMode
}

// PurchaseEffect buys asset units with the account's cash
type PurchaseEffect struct {
	Coord  AssetCoord
	Amount TransferAmount
}

// SweepEffect liquidates every position in the source accounts and moves the
// resulting cash to the destination account
type SweepEffect struct {
	Sources     []AccountID
	Destination AccountID
}

// WithdrawEffect pulls cash out of the plan from a strategy-ordered set of
// accounts, liquidating assets as needed
type WithdrawEffect struct {
	Amount  TransferAmount
	Sources WithdrawalSources
}

// TriggerEventEffect queues another event to fire on the same date
type TriggerEventEffect struct {
	EventID EventID
}

// PauseEventEffect suspends a repeating series without losing its schedule
type PauseEventEffect struct {
	EventID EventID
}

// ResumeEventEffect reactivates a paused repeating series
type ResumeEventEffect struct {
	EventID EventID
}

// TerminateEventEffect permanently stops an event from firing again
type TerminateEventEffect struct {
	EventID EventID
}

// CreateRMDWithdrawalEffect registers a tax-deferred account for required
// minimum distributions starting at an age
type CreateRMDWithdrawalEffect struct {
	AccountID AccountID
	StartAge  int
}

// ApplyRMDEffect executes this year's required distribution for every
// registered account
type ApplyRMDEffect struct{}

// AdjustBalanceEffect applies a raw delta to an account balance, for
// valuation corrections and loan principal adjustments
type AdjustBalanceEffect struct {
	AccountID AccountID
	Delta     decimal.Decimal
}

func (CreateAccountEffect) isEffect()       {}
func (DeleteAccountEffect) isEffect()       {}
func (TransferEffect) isEffect()            {}
func (IncomeEffect) isEffect()              {}
func (ExpenseEffect) isEffect()             {}
func (LiquidateEffect) isEffect()           {}
func (PurchaseEffect) isEffect()            {}
func (SweepEffect) isEffect()               {}
func (WithdrawEffect) isEffect()            {}
func (TriggerEventEffect) isEffect()        {}
func (PauseEventEffect) isEffect()          {}
func (ResumeEventEffect) isEffect()         {}
func (TerminateEventEffect) isEffect()      {}
func (CreateRMDWithdrawalEffect) isEffect() {}
func (ApplyRMDEffect) isEffect()            {}
func (AdjustBalanceEffect) isEffect()       {}
