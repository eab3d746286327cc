package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MarshalJSON encodes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes a JSON document, flattening nested values with the
// default FlattenOptions.
func (r *Record) UnmarshalJSON(data []byte) error {
	out, err := Decode(bytes.NewReader(data), FlattenOptions{})
	if err != nil {
		return err
	}
	*r = out
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// FlattenOptions bounds how much of a nested document is kept.
type FlattenOptions struct {
	MaxDepth int
	MaxKeys  int
}

// Decode reads one JSON value into a Record. Nested objects become dotted
// keys ("a.b") and arrays become indexed keys ("a.c[0]"); a bare scalar is
// stored under "value". Booleans are kept as the strings "true"/"false".
func Decode(rd io.Reader, opts FlattenOptions) (Record, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 16
	}
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = 5000
	}

	dec := json.NewDecoder(rd)
	dec.UseNumber()

	var out Record
	tok, err := dec.Token()
	if err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if err := flattenInto(dec, &out, "", tok, 0, opts); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Record{}, fmt.Errorf("decode record: trailing data after document")
	}
	return out, nil
}

func flattenInto(dec *json.Decoder, out *Record, prefix string, tok json.Token, depth int, opts FlattenOptions) error {
	if depth > opts.MaxDepth {
		if err := skipValue(dec, tok); err != nil {
			return err
		}
		if prefix != "" && out.Len() < opts.MaxKeys {
			out.Set(prefix, String(fmt.Sprintf("<max_depth:%d>", opts.MaxDepth)))
		}
		return nil
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return err
				}
				k, ok := kt.(string)
				if !ok {
					return fmt.Errorf("unexpected object key %v", kt)
				}
				key := k
				if prefix != "" {
					key = prefix + "." + k
				}
				child, err := dec.Token()
				if err != nil {
					return err
				}
				if err := flattenInto(dec, out, key, child, depth+1, opts); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				idx := strconv.Itoa(i)
				key := idx
				if prefix != "" {
					key = prefix + "[" + idx + "]"
				}
				child, err := dec.Token()
				if err != nil {
					return err
				}
				if err := flattenInto(dec, out, key, child, depth+1, opts); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unexpected delimiter %q", t)
		}
		_, err := dec.Token()
		return err
	default:
		if out.Len() >= opts.MaxKeys && !out.Has(prefix) {
			return nil
		}
		name := prefix
		if name == "" {
			name = "value"
		}
		out.Set(name, scalarFromToken(t))
		return nil
	}
}

// skipValue consumes the rest of the value that starts with tok.
func skipValue(dec *json.Decoder, tok json.Token) error {
	d, ok := tok.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return nil
	}
	for depth := 1; depth > 0; {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := t.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

func scalarFromToken(tok json.Token) Value {
	switch t := tok.(type) {
	case string:
		return String(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case bool:
		return String(strconv.FormatBool(t))
	default:
		return Null()
	}
}
