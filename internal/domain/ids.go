package domain

import "fmt"

// Dense numeric identifiers keep hot-path lookups cheap: event runtime state
// is stored in slices indexed by id rather than maps.

// AccountID identifies an account within a plan
type AccountID uint16

// AssetID identifies an asset (security, property) within a plan
type AssetID uint16

// EventID identifies a scheduled event within a plan
type EventID uint16

// ProfileID identifies a return or inflation profile within a plan
type ProfileID uint16

func (id AccountID) String() string { return fmt.Sprintf("account(%d)", uint16(id)) }
func (id AssetID) String() string   { return fmt.Sprintf("asset(%d)", uint16(id)) }
func (id EventID) String() string   { return fmt.Sprintf("event(%d)", uint16(id)) }
func (id ProfileID) String() string { return fmt.Sprintf("profile(%d)", uint16(id)) }

// AssetCoord addresses a specific asset position held inside an account
type AssetCoord struct {
	AccountID AccountID
	AssetID   AssetID
}

func (c AssetCoord) String() string {
	return fmt.Sprintf("asset(%d/%d)", uint16(c.AccountID), uint16(c.AssetID))
}
