package domain

// ReturnProfileKind selects the distribution a profile samples yearly rates from
type ReturnProfileKind string

const (
	ProfileNone      ReturnProfileKind = "none"
	ProfileFixed     ReturnProfileKind = "fixed"
	ProfileNormal    ReturnProfileKind = "normal"
	ProfileLogNormal ReturnProfileKind = "log_normal"
)

// ReturnProfile describes how an asset's price (or an account's interest
// rate) evolves year over year. Fixed uses Rate; Normal uses Mean/StdDev as
// a yearly return; LogNormal uses Mean/StdDev as mu/sigma of the log of the
// gross return, sampled as exp(N(mu,sigma)) - 1.
type ReturnProfile struct {
	ID     ProfileID
	Name   string
	Kind   ReturnProfileKind
	Rate   float64
	Mean   float64
	StdDev float64
}

// InflationProfile describes the yearly inflation process. Same sampling
// semantics as ReturnProfile.
type InflationProfile struct {
	Kind   ReturnProfileKind
	Rate   float64
	Mean   float64
	StdDev float64
}

// AssetSpec binds an asset to its starting price and return profile
type AssetSpec struct {
	ID           AssetID
	Name         string
	InitialPrice float64
	Profile      ProfileID
}
