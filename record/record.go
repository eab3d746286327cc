// Package record holds the schema-less document type shared by the
// ingestion pipeline, the store and the spreadsheet writer.
package record

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered mapping from field name to scalar Value. Fields keep
// the position of their first Set.
type Record struct {
	fields []Field
	index  map[string]int
}

func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Set stores v under name, replacing an existing value in place.
func (r *Record) Set(name string, v Value) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = v
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

func (r Record) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.fields[i].Value, true
}

func (r Record) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Delete removes name and reports whether it was present.
func (r *Record) Delete(name string) bool {
	i, ok := r.index[name]
	if !ok {
		return false
	}
	r.fields = append(r.fields[:i], r.fields[i+1:]...)
	delete(r.index, name)
	for j := i; j < len(r.fields); j++ {
		r.index[r.fields[j].Name] = j
	}
	return true
}

func (r Record) Len() int { return len(r.fields) }

// Fields returns a copy of the fields in order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r Record) Keys() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Name
	}
	return out
}

// Empty reports whether no field carries a non-empty value. Empty records
// are never stored.
func (r Record) Empty() bool {
	for _, f := range r.fields {
		if !f.Value.IsEmpty() {
			return false
		}
	}
	return true
}

func (r Record) Clone() Record {
	return New(r.fields...)
}

// Equal compares field order, names and values.
func (r Record) Equal(o Record) bool {
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i].Name != o.fields[i].Name || !r.fields[i].Value.Equal(o.fields[i].Value) {
			return false
		}
	}
	return true
}
