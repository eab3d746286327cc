package ingest

import (
	"fmt"
	"strings"
)

// Alias lists the header labels recognized for one canonical field.
type Alias struct {
	Field  string   `yaml:"field"`
	Labels []string `yaml:"labels"`
}

// AliasTable is ordered: when a header matches several entries by
// substring, the first-declared entry wins.
type AliasTable []Alias

// DefaultAliases mirrors the columns of the upload template.
func DefaultAliases() AliasTable {
	return AliasTable{
		{Field: "name", Labels: []string{"full name", "fullname", "person name", "display name", "customer name"}},
		{Field: "age", Labels: []string{"years", "age (years)"}},
		{Field: "email", Labels: []string{"e-mail", "email address", "e-mail address", "mail", "email id"}},
		{Field: "city", Labels: []string{"town", "location", "city name"}},
		{Field: "phone", Labels: []string{"phone number", "mobile", "mobile number", "telephone", "tel", "cell", "contact number"}},
	}
}

// Fields returns the canonical field names in declaration order.
func (t AliasTable) Fields() []string {
	out := make([]string, len(t))
	for i, a := range t {
		out[i] = a.Field
	}
	return out
}

func (t AliasTable) Validate() error {
	seen := make(map[string]bool, len(t))
	for i, a := range t {
		field := strings.TrimSpace(a.Field)
		if field == "" {
			return fmt.Errorf("alias entry %d: empty field name", i)
		}
		if seen[field] {
			return fmt.Errorf("alias entry %d: duplicate field %q", i, field)
		}
		seen[field] = true
	}
	return nil
}
