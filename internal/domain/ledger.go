package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChangeKind tags every ledger record for cheap filtering
type ChangeKind string

const (
	KindTimeAdvance              ChangeKind = "time_advance"
	KindCreateAccount            ChangeKind = "create_account"
	KindDeleteAccount            ChangeKind = "delete_account"
	KindCashCredit               ChangeKind = "cash_credit"
	KindCashDebit                ChangeKind = "cash_debit"
	KindCashAppreciation         ChangeKind = "cash_appreciation"
	KindLiabilityInterest        ChangeKind = "liability_interest"
	KindAssetPurchase            ChangeKind = "asset_purchase"
	KindAssetSale                ChangeKind = "asset_sale"
	KindIncomeTax                ChangeKind = "income_tax"
	KindShortTermGainsTax        ChangeKind = "short_term_gains_tax"
	KindLongTermGainsTax         ChangeKind = "long_term_gains_tax"
	KindEarlyWithdrawalPenalty   ChangeKind = "early_withdrawal_penalty"
	KindBalanceAdjusted          ChangeKind = "balance_adjusted"
	KindEventTriggered           ChangeKind = "event_triggered"
	KindEventPaused              ChangeKind = "event_paused"
	KindEventResumed             ChangeKind = "event_resumed"
	KindEventTerminated          ChangeKind = "event_terminated"
	KindYearRollover             ChangeKind = "year_rollover"
	KindRMDWithdrawal            ChangeKind = "rmd_withdrawal"
)

// StateChange is one recorded mutation of simulation state. The ledger of
// all changes is the audit trail for a run; every mutation goes through it.
type StateChange interface {
	Kind() ChangeKind
}

// LedgerRecord pairs a state change with its date and originating event
type LedgerRecord struct {
	Date        time.Time
	SourceEvent *EventID
	Change      StateChange
}

// TimeAdvance records the clock moving forward
type TimeAdvance struct {
	From time.Time
	To   time.Time
	Days int
}

// AccountCreated records a new account entering the plan
type AccountCreated struct {
	AccountID AccountID
	Name      string
}

// AccountDeleted records an account leaving the plan
type AccountDeleted struct {
	AccountID AccountID
}

// CashCredit records cash arriving in an account
type CashCredit struct {
	To     AccountID
	Amount decimal.Decimal
}

// CashDebit records cash leaving an account
type CashDebit struct {
	From   AccountID
	Amount decimal.Decimal
}

// CashAppreciation records interest earned by a cash balance over a period
type CashAppreciation struct {
	AccountID AccountID
	Previous  decimal.Decimal
	New       decimal.Decimal
	Rate      float64
	Days      int
}

// LiabilityInterest records interest accruing on loan principal
type LiabilityInterest struct {
	AccountID AccountID
	Previous  decimal.Decimal
	New       decimal.Decimal
	Rate      float64
	Days      int
}

// AssetPurchased records units added to a position
type AssetPurchased struct {
	Coord        AssetCoord
	Units        decimal.Decimal
	CostBasis    decimal.Decimal
	PricePerUnit decimal.Decimal
}

// AssetSold records one lot-level sale with its gain classification
type AssetSold struct {
	Coord         AssetCoord
	LotDate       time.Time
	Units         decimal.Decimal
	CostBasis     decimal.Decimal
	Proceeds      decimal.Decimal
	ShortTermGain decimal.Decimal
	LongTermGain  decimal.Decimal
}

// IncomeTaxed records ordinary income tax accruing
type IncomeTaxed struct {
	GrossAmount decimal.Decimal
	FederalTax  decimal.Decimal
	StateTax    decimal.Decimal
}

// ShortTermGainsTaxed records short-term capital gains tax accruing
type ShortTermGainsTaxed struct {
	GrossGain  decimal.Decimal
	FederalTax decimal.Decimal
	StateTax   decimal.Decimal
}

// LongTermGainsTaxed records long-term capital gains tax accruing
type LongTermGainsTaxed struct {
	GrossGain  decimal.Decimal
	FederalTax decimal.Decimal
	StateTax   decimal.Decimal
}

// EarlyWithdrawalPenalized records the penalty on a pre-59.5 withdrawal
type EarlyWithdrawalPenalized struct {
	GrossAmount decimal.Decimal
	Penalty     decimal.Decimal
	Rate        decimal.Decimal
}

// BalanceAdjusted records a raw balance delta
type BalanceAdjusted struct {
	AccountID AccountID
	Previous  decimal.Decimal
	New       decimal.Decimal
	Delta     decimal.Decimal
}

// EventTriggered records a plan event firing
type EventTriggered struct {
	EventID EventID
}

// EventPaused records a repeating series being suspended
type EventPaused struct {
	EventID EventID
}

// EventResumed records a repeating series being reactivated
type EventResumed struct {
	EventID EventID
}

// EventTerminated records an event being permanently stopped
type EventTerminated struct {
	EventID EventID
}

// YearRollover records the tax year closing
type YearRollover struct {
	FromYear int
	ToYear   int
}

// RMDWithdrawn records one required minimum distribution, including the
// shortfall when the account could not cover the required amount
type RMDWithdrawn struct {
	AccountID        AccountID
	Age              int
	PriorYearBalance decimal.Decimal
	Divisor          float64
	RequiredAmount   decimal.Decimal
	ActualAmount     decimal.Decimal
}

func (TimeAdvance) Kind() ChangeKind              { return KindTimeAdvance }
func (AccountCreated) Kind() ChangeKind           { return KindCreateAccount }
func (AccountDeleted) Kind() ChangeKind           { return KindDeleteAccount }
func (CashCredit) Kind() ChangeKind               { return KindCashCredit }
func (CashDebit) Kind() ChangeKind                { return KindCashDebit }
func (CashAppreciation) Kind() ChangeKind         { return KindCashAppreciation }
func (LiabilityInterest) Kind() ChangeKind        { return KindLiabilityInterest }
func (AssetPurchased) Kind() ChangeKind           { return KindAssetPurchase }
func (AssetSold) Kind() ChangeKind                { return KindAssetSale }
func (IncomeTaxed) Kind() ChangeKind              { return KindIncomeTax }
func (ShortTermGainsTaxed) Kind() ChangeKind      { return KindShortTermGainsTax }
func (LongTermGainsTaxed) Kind() ChangeKind       { return KindLongTermGainsTax }
func (EarlyWithdrawalPenalized) Kind() ChangeKind { return KindEarlyWithdrawalPenalty }
func (BalanceAdjusted) Kind() ChangeKind          { return KindBalanceAdjusted }
func (EventTriggered) Kind() ChangeKind           { return KindEventTriggered }
func (EventPaused) Kind() ChangeKind              { return KindEventPaused }
func (EventResumed) Kind() ChangeKind             { return KindEventResumed }
func (EventTerminated) Kind() ChangeKind          { return KindEventTerminated }
func (YearRollover) Kind() ChangeKind             { return KindYearRollover }
func (RMDWithdrawn) Kind() ChangeKind             { return KindRMDWithdrawal }

// AccountOf returns the account a change touches, if any
func AccountOf(c StateChange) (AccountID, bool) {
	switch v := c.(type) {
	case AccountCreated:
		return v.AccountID, true
	case AccountDeleted:
		return v.AccountID, true
	case CashCredit:
		return v.To, true
	case CashDebit:
		return v.From, true
	case CashAppreciation:
		return v.AccountID, true
	case LiabilityInterest:
		return v.AccountID, true
	case AssetPurchased:
		return v.Coord.AccountID, true
	case AssetSold:
		return v.Coord.AccountID, true
	case BalanceAdjusted:
		return v.AccountID, true
	case RMDWithdrawn:
		return v.AccountID, true
	default:
		return 0, false
	}
}
