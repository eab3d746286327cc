package record

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseScalar(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
		text string
	}{
		{"", KindNull, ""},
		{"   ", KindNull, ""},
		{" 42 ", KindNumber, "42"},
		{"-3.5", KindNumber, "-3.5"},
		{"1e3", KindNumber, "1000"},
		{"007", KindString, "007"},
		{"0.5", KindNumber, "0.5"},
		{"1234567890123456", KindString, "1234567890123456"},
		{"123-456-7890", KindString, "123-456-7890"},
		{"NaN", KindString, "NaN"},
		{"Inf", KindString, "Inf"},
		{"  Ann  ", KindString, "Ann"},
	}
	for _, tc := range cases {
		v := ParseScalar(tc.in)
		require.Equal(t, tc.kind, v.Kind(), "input %q", tc.in)
		require.Equal(t, tc.text, v.Text(), "input %q", tc.in)
	}
}

func TestRecord_SetKeepsFirstPosition(t *testing.T) {
	var r Record
	r.Set("name", String("Ann"))
	r.Set("email", String("ann@x.com"))
	r.Set("name", String("Annie"))

	require.Equal(t, []string{"name", "email"}, r.Keys())
	v, ok := r.Get("name")
	require.True(t, ok)
	require.Equal(t, "Annie", v.Text())

	require.True(t, r.Delete("name"))
	require.False(t, r.Delete("name"))
	require.Equal(t, []string{"email"}, r.Keys())
	v, ok = r.Get("email")
	require.True(t, ok)
	require.Equal(t, "ann@x.com", v.Text())
}

func TestRecord_Empty(t *testing.T) {
	require.True(t, Record{}.Empty())
	require.True(t, New(Field{"a", Null()}, Field{"b", String("  ")}).Empty())
	require.False(t, New(Field{"a", Number(0)}).Empty())
}

func TestRecord_JSONKeepsOrder(t *testing.T) {
	r := New(
		Field{"zeta", String("z")},
		Field{"age", Number(30)},
		Field{"alpha", Null()},
	)
	b, err := json.Marshal(r)
	require.NoError(t, err)
	require.Equal(t, `{"zeta":"z","age":30,"alpha":null}`, string(b))

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	require.True(t, r.Equal(back))
}

func TestDecode_FlattensNested(t *testing.T) {
	in := `{"a":{"b":1,"c":["x",{"y":true}]},"n":null}`
	r, err := Decode(strings.NewReader(in), FlattenOptions{MaxDepth: 8, MaxKeys: 100})
	require.NoError(t, err)

	require.Equal(t, []string{"a.b", "a.c[0]", "a.c[1].y", "n"}, r.Keys())
	v, _ := r.Get("a.b")
	require.Equal(t, KindNumber, v.Kind())
	v, _ = r.Get("a.c[1].y")
	require.Equal(t, "true", v.Text())
	v, _ = r.Get("n")
	require.True(t, v.IsNull())
}

func TestDecode_Limits(t *testing.T) {
	r, err := Decode(strings.NewReader(`{"a":{"b":{"c":1}},"d":2}`), FlattenOptions{MaxDepth: 1, MaxKeys: 100})
	require.NoError(t, err)
	v, ok := r.Get("a.b")
	require.True(t, ok)
	require.Equal(t, "<max_depth:1>", v.Text())
	v, _ = r.Get("d")
	require.Equal(t, "2", v.Text())

	r, err = Decode(strings.NewReader(`{"a":1,"b":2,"c":3}`), FlattenOptions{MaxKeys: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, r.Keys())
}

func TestDecode_ScalarAndTrailing(t *testing.T) {
	r, err := Decode(strings.NewReader(`"hello"`), FlattenOptions{})
	require.NoError(t, err)
	v, _ := r.Get("value")
	require.Equal(t, "hello", v.Text())

	_, err = Decode(strings.NewReader(`{"a":1} {"b":2}`), FlattenOptions{})
	require.Error(t, err)

	_, err = Decode(strings.NewReader(`{"a":`), FlattenOptions{})
	require.Error(t, err)
}
