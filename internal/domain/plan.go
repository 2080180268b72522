package domain

import "time"

// Plan is the complete simulation input: who, what they hold, what happens,
// and how markets and taxes behave. Plans are immutable once validated; each
// simulation run deep-copies the mutable parts it needs.
type Plan struct {
	StartDate     time.Time
	DurationYears int
	BirthDate     time.Time

	Accounts []Account
	Assets   []AssetSpec
	Events   []Event

	ReturnProfiles []ReturnProfile
	Inflation      InflationProfile

	Taxes    TaxConfig
	RMDTable RMDTable

	// CollectLedger disables ledger recording when false, which batch Monte
	// Carlo runs use to keep memory flat
	CollectLedger bool
}

// EndDate is the exclusive end of the simulation window
func (p *Plan) EndDate() time.Time {
	return p.StartDate.AddDate(p.DurationYears, 0, 0)
}

// AccountByID finds a configured account
func (p *Plan) AccountByID(id AccountID) (*Account, bool) {
	for i := range p.Accounts {
		if p.Accounts[i].ID == id {
			return &p.Accounts[i], true
		}
	}
	return nil, false
}

// AssetByID finds a configured asset
func (p *Plan) AssetByID(id AssetID) (*AssetSpec, bool) {
	for i := range p.Assets {
		if p.Assets[i].ID == id {
			return &p.Assets[i], true
		}
	}
	return nil, false
}

// EventByID finds a configured event
func (p *Plan) EventByID(id EventID) (*Event, bool) {
	for i := range p.Events {
		if p.Events[i].ID == id {
			return &p.Events[i], true
		}
	}
	return nil, false
}

// ProfileByID finds a configured return profile
func (p *Plan) ProfileByID(id ProfileID) (*ReturnProfile, bool) {
	for i := range p.ReturnProfiles {
		if p.ReturnProfiles[i].ID == id {
			return &p.ReturnProfiles[i], true
		}
	}
	return nil, false
}

// MaxEventID returns the largest event id, for sizing dense runtime state
func (p *Plan) MaxEventID() EventID {
	var max EventID
	for _, e := range p.Events {
		if e.ID > max {
			max = e.ID
		}
	}
	return max
}
