package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxStatus describes how withdrawals from an account are taxed
type TaxStatus string

const (
	// Taxable accounts owe capital gains tax on realized appreciation
	Taxable TaxStatus = "taxable"
	// TaxDeferred accounts owe ordinary income tax on the whole withdrawal
	TaxDeferred TaxStatus = "tax_deferred"
	// TaxFree accounts owe nothing on qualified withdrawals
	TaxFree TaxStatus = "tax_free"
	// Illiquid accounts cannot be drawn on by withdrawal strategies
	Illiquid TaxStatus = "illiquid"
)

// AssetClass describes the kind of value an account holds
type AssetClass string

const (
	Cash         AssetClass = "cash"
	Investable   AssetClass = "investable"
	RealEstate   AssetClass = "real_estate"
	Depreciating AssetClass = "depreciating"
	Liability    AssetClass = "liability"
)

// LotMethod selects which tax lots are consumed first when selling
type LotMethod string

const (
	FIFO        LotMethod = "fifo"
	LIFO        LotMethod = "lifo"
	HighestCost LotMethod = "highest_cost"
	LowestCost  LotMethod = "lowest_cost"
	AverageCost LotMethod = "average_cost"
)

// ContributionPeriod is the window over which a contribution limit applies
type ContributionPeriod string

const (
	Monthly ContributionPeriod = "monthly"
	Yearly  ContributionPeriod = "yearly"
)

// ContributionLimit caps inflows to an account per period
type ContributionLimit struct {
	Amount decimal.Decimal
	Period ContributionPeriod
}

// AssetLot is a single purchase of an asset, tracked for cost basis
type AssetLot struct {
	AssetID      AssetID
	PurchaseDate time.Time
	Units        decimal.Decimal
	CostBasis    decimal.Decimal
}

// CostPerUnit returns the basis per unit, zero for an empty lot
func (l AssetLot) CostPerUnit() decimal.Decimal {
	if l.Units.IsZero() {
		return decimal.Zero
	}
	return l.CostBasis.Div(l.Units)
}

// Account is a container of cash and/or asset lots. Liability accounts store
// the outstanding principal as a positive CashBalance but are valued negative.
type Account struct {
	ID         AccountID
	Name       string
	TaxStatus  TaxStatus
	AssetClass AssetClass

	// CashBalance is the cash component; for Liability it is the principal
	CashBalance decimal.Decimal

	// Lots holds asset positions for Investable and RealEstate accounts
	Lots []AssetLot

	// LotMethod selects sale ordering; defaults to FIFO when empty
	LotMethod LotMethod

	// ReturnProfile optionally binds the cash balance (interest) or liability
	// principal (loan rate) to a return profile
	ReturnProfile *ProfileID

	// ContributionLimit optionally caps inflows per month or year
	ContributionLimit *ContributionLimit
}

// IsLiquid reports whether withdrawal strategies may draw on this account
func (a *Account) IsLiquid() bool {
	if a.TaxStatus == Illiquid {
		return false
	}
	return a.AssetClass == Cash || a.AssetClass == Investable
}

// HoldsAssets reports whether the account can carry tax lots
func (a *Account) HoldsAssets() bool {
	return a.AssetClass == Investable || a.AssetClass == RealEstate
}

// UnitsOf sums the units held across all lots of one asset
func (a *Account) UnitsOf(assetID AssetID) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range a.Lots {
		if lot.AssetID == assetID {
			total = total.Add(lot.Units)
		}
	}
	return total
}

// EffectiveLotMethod returns the configured lot method, defaulting to FIFO
func (a *Account) EffectiveLotMethod() LotMethod {
	if a.LotMethod == "" {
		return FIFO
	}
	return a.LotMethod
}

// Clone returns a deep copy so per-run engine instances never share lots
func (a *Account) Clone() *Account {
	clone := *a
	clone.Lots = make([]AssetLot, len(a.Lots))
	copy(clone.Lots, a.Lots)
	if a.ReturnProfile != nil {
		rp := *a.ReturnProfile
		clone.ReturnProfile = &rp
	}
	if a.ContributionLimit != nil {
		cl := *a.ContributionLimit
		clone.ContributionLimit = &cl
	}
	return &clone
}
