package binding

import (
	"strings"

	"github.com/stephnangue/idstore/repository/schema"
)

// Kind parameterizes the store over one identifier family: its table
// and the physical encoding of the identifier string. Every kind shares
// the same algorithmic shape; only the normalization differs.
type Kind struct {
	Name      string
	TableName string
	Normalize func(string) string
}

var (
	// Username identifiers are case-insensitive.
	Username = Kind{
		Name:      "username",
		TableName: schema.UsernamesTableName,
		Normalize: func(s string) string {
			return strings.ToLower(strings.TrimSpace(s))
		},
	}

	// LookupName is the display-backed lookup name: case-insensitive
	// with interior whitespace collapsed.
	LookupName = Kind{
		Name:      "lookup_name",
		TableName: schema.LookupNamesTableName,
		Normalize: func(s string) string {
			return strings.Join(strings.Fields(strings.ToLower(s)), " ")
		},
	}

	// Email identifiers are case-insensitive.
	Email = Kind{
		Name:      "email",
		TableName: schema.EmailsTableName,
		Normalize: func(s string) string {
			return strings.ToLower(strings.TrimSpace(s))
		},
	}

	// Phone identifiers keep digits only, with the leading plus when
	// present.
	Phone = Kind{
		Name:      "phone",
		TableName: schema.PhonesTableName,
		Normalize: func(s string) string {
			s = strings.TrimSpace(s)
			var sb strings.Builder
			for i, r := range s {
				if r >= '0' && r <= '9' {
					sb.WriteRune(r)
				} else if r == '+' && i == 0 {
					sb.WriteRune(r)
				}
			}
			return sb.String()
		},
	}
)
