package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconciler_Resolve(t *testing.T) {
	r := NewReconciler(DefaultAliases())
	cases := []struct {
		label string
		field string
		match MatchKind
	}{
		{"Email", "email", MatchExact},
		{"  E-mail ", "email", MatchExact},
		{"E_MAIL", "email", MatchExact},
		{"Full Name", "name", MatchExact},
		{"NAME", "name", MatchExact},
		{"Age (years)", "age", MatchExact},
		{"Mobile Phone", "phone", MatchSubstring},
		{"Work Email", "email", MatchSubstring},
		{"Home City", "city", MatchSubstring},
		{"Date of Birth", "date_of_birth", MatchSlug},
		{"Société", "societe", MatchSlug},
		{"---", "", MatchPositional},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			field, match := r.Resolve(tc.label)
			require.Equal(t, tc.field, field)
			require.Equal(t, tc.match, match)
		})
	}
}

func TestReconciler_FirstDeclaredEntryWins(t *testing.T) {
	r := NewReconciler(AliasTable{
		{Field: "contact", Labels: []string{"mail"}},
		{Field: "email", Labels: []string{"email"}},
	})
	// "backup mail" only contains aliases by substring; the first entry wins.
	field, match := r.Resolve("backup mail")
	require.Equal(t, "contact", field)
	require.Equal(t, MatchSubstring, match)
}

func TestReconciler_ShortLabelsDoNotMatchBySubstring(t *testing.T) {
	r := NewReconciler(DefaultAliases())
	field, match := r.Resolve("ID")
	require.Equal(t, "id", field)
	require.Equal(t, MatchSlug, match)
}

func TestReconciler_ShortAliasesMatchWholeWords(t *testing.T) {
	r := NewReconciler(DefaultAliases())
	cases := []struct {
		label string
		field string
		match MatchKind
	}{
		{"Age (yrs)", "age", MatchSubstring},
		{"Home Tel", "phone", MatchSubstring},
		{"Message", "message", MatchSlug},
		{"Manager", "manager", MatchSlug},
		{"Page", "page", MatchSlug},
		{"Language", "language", MatchSlug},
		{"Hotel", "hotel", MatchSlug},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			field, match := r.Resolve(tc.label)
			require.Equal(t, tc.field, field)
			require.Equal(t, tc.match, match)
		})
	}
}

func TestReconcile_PositionalFallback(t *testing.T) {
	r := NewReconciler(DefaultAliases())
	m, headers := r.Reconcile(map[int]string{1: "Full Name", 3: "???"})

	require.Equal(t, "name", m.Field(1))
	require.Equal(t, "col2", m.Field(2))
	require.Equal(t, "col3", m.Field(3))
	require.Len(t, headers, 2)
	require.Equal(t, Header{Column: 3, Label: "???", Field: "col3", Match: MatchPositional}, headers[1])
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "date_of_birth", Slugify("  Date of   Birth! "))
	require.Equal(t, "creme_brulee", Slugify("Crème-Brûlée"))
	require.Equal(t, "", Slugify("__"))
}

func TestAliasTable_Validate(t *testing.T) {
	require.NoError(t, DefaultAliases().Validate())
	require.Error(t, AliasTable{{Field: " "}}.Validate())
	require.Error(t, AliasTable{{Field: "a"}, {Field: "a"}}.Validate())
}
