// Package schema declares the static table and index layout of every
// entity, with typed attribute descriptors. All attribute names live
// here; nothing above the codec touches a raw attribute string.
package schema

import (
	"time"

	"github.com/stephnangue/idstore/physical"
)

// EndOfTime is the sentinel deactivate time: the maximal timestamp the
// store represents. A binding whose deactivate time equals EndOfTime is
// the currently active one.
var EndOfTime = time.Date(9999, 12, 31, 23, 59, 59, 999000000, time.UTC)

// IsEndOfTime reports whether t is the sentinel.
func IsEndOfTime(t time.Time) bool {
	return t.Equal(EndOfTime)
}

// Table names.
const (
	TokensTableName      = "idstore_tokens"
	ProfilesTableName    = "idstore_profiles"
	UsernamesTableName   = "idstore_usernames"
	LookupNamesTableName = "idstore_lookup_names"
	EmailsTableName      = "idstore_emails"
	PhonesTableName      = "idstore_phones"
)

// Binding index names.
const (
	ActivateTimeIndex = "activate_time_index"
	PrincipalIndex    = "principal_index"
)

// TokenAttrs are the attribute descriptors of the tokens table.
type TokenAttrs struct {
	Type          physical.AttrDef
	Value         physical.AttrDef
	IssuedAt      physical.AttrDef
	ExpireAt      physical.AttrDef
	UserID        physical.AttrDef
	PrincipalID   physical.AttrDef
	PrincipalType physical.AttrDef
}

// Tokens holds the tokens table attribute descriptors.
var Tokens = TokenAttrs{
	Type:          physical.AttrDef{Name: "token_type", Type: physical.TypeString},
	Value:         physical.AttrDef{Name: "token_value", Type: physical.TypeString},
	IssuedAt:      physical.AttrDef{Name: "issued_at", Type: physical.TypeNumber},
	ExpireAt:      physical.AttrDef{Name: "expire_at", Type: physical.TypeNumber},
	UserID:        physical.AttrDef{Name: "user_id", Type: physical.TypeNumber},
	PrincipalID:   physical.AttrDef{Name: "principal_id", Type: physical.TypeNumber},
	PrincipalType: physical.AttrDef{Name: "principal_type", Type: physical.TypeString},
}

// TokensTable is the tokens table layout: token type as hash key, token
// value as range key.
func TokensTable() physical.TableSchema {
	rangeKey := Tokens.Value
	return physical.TableSchema{
		Name:     TokensTableName,
		HashKey:  Tokens.Type,
		RangeKey: &rangeKey,
	}
}

// BindingAttrs are the attribute descriptors shared by every
// identifier-binding table.
type BindingAttrs struct {
	Identifier     physical.AttrDef
	DeactivateTime physical.AttrDef
	ActivateTime   physical.AttrDef
	PrincipalID    physical.AttrDef
}

// Bindings holds the binding table attribute descriptors.
var Bindings = BindingAttrs{
	Identifier:     physical.AttrDef{Name: "identifier", Type: physical.TypeString},
	DeactivateTime: physical.AttrDef{Name: "deactivate_time", Type: physical.TypeNumber},
	ActivateTime:   physical.AttrDef{Name: "activate_time", Type: physical.TypeNumber},
	PrincipalID:    physical.AttrDef{Name: "principal_id", Type: physical.TypeNumber},
}

// BindingTable is the layout of one identifier kind's binding table:
// identifier as hash key, deactivate time as range key, a local index
// on activate time for point-in-time lookups, and a global (eventually
// consistent) index on principal for reverse lookups.
func BindingTable(name string) physical.TableSchema {
	rangeKey := Bindings.DeactivateTime
	return physical.TableSchema{
		Name:     name,
		HashKey:  Bindings.Identifier,
		RangeKey: &rangeKey,
		Indexes: []physical.IndexDef{
			{
				Name:     ActivateTimeIndex,
				Kind:     physical.LocalIndex,
				HashKey:  Bindings.Identifier,
				RangeKey: Bindings.ActivateTime,
			},
			{
				Name:     PrincipalIndex,
				Kind:     physical.GlobalIndex,
				HashKey:  Bindings.PrincipalID,
				RangeKey: Bindings.ActivateTime,
			},
		},
	}
}

// ProfileAttrs are the attribute descriptors of the profiles table.
type ProfileAttrs struct {
	PrincipalID  physical.AttrDef
	PasswordHash physical.AttrDef
	Salt         physical.AttrDef
	DisplayName  physical.AttrDef
}

// Profiles holds the profiles table attribute descriptors.
var Profiles = ProfileAttrs{
	PrincipalID:  physical.AttrDef{Name: "principal_id", Type: physical.TypeNumber},
	PasswordHash: physical.AttrDef{Name: "password_hash", Type: physical.TypeBinary},
	Salt:         physical.AttrDef{Name: "salt", Type: physical.TypeBinary},
	DisplayName:  physical.AttrDef{Name: "display_name", Type: physical.TypeString},
}

// ProfilesTable is the profiles table layout: principal id as sole key.
func ProfilesTable() physical.TableSchema {
	return physical.TableSchema{
		Name:    ProfilesTableName,
		HashKey: Profiles.PrincipalID,
	}
}

// AllTables enumerates every table this system provisions.
func AllTables() []physical.TableSchema {
	return []physical.TableSchema{
		TokensTable(),
		ProfilesTable(),
		BindingTable(UsernamesTableName),
		BindingTable(LookupNamesTableName),
		BindingTable(EmailsTableName),
		BindingTable(PhonesTableName),
	}
}
