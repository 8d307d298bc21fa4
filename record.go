package netcdfproc

import "github.com/Grismar/netcdfproc/netcdf"

// Map is a string-keyed map that remembers insertion order. Setting an
// existing key replaces its value in place.
type Map[V any] struct {
	keys   []string
	values map[string]V
}

// Set stores v under key.
func (m *Map[V]) Set(key string, v V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *Map[V]) Len() int { return len(m.keys) }

// GroupRecord is the conversion result of one group.
type GroupRecord struct {
	Subgroups        Map[*GroupRecord]
	GlobalAttributes Map[any]
	Variables        Map[*VariableRecord]
	Data             Map[Data]
}

// Record keys.
const (
	keySubgroups        = "subgroups"
	keyGlobalAttributes = "global_attributes"
	keyVariables        = "variables"
	keyData             = "data"
	keySize             = "__size"
	keySource           = "__source"
)

// VariableRecord is the metadata of one variable: its attributes in
// source order and the extent of each of its dimensions.
type VariableRecord struct {
	Attributes Map[any]
	Size       []int
}

// Fields returns the attributes followed by __size, the key layout of a
// variable in the JSON output. An attribute named __size is replaced by
// the sizes.
func (r *VariableRecord) Fields() *Map[any] {
	out := &Map[any]{}
	for _, k := range r.Attributes.keys {
		out.Set(k, r.Attributes.values[k])
	}
	out.Set(keySize, r.Size)
	return out
}

// Data is the representation chosen for the values of a variable: Inline
// or CSVRef.
type Data interface {
	isData()
}

// Inline carries the values themselves.
type Inline struct {
	Array *netcdf.Array
}

// CSVRef points to the CSV file the values were written to.
type CSVRef struct {
	Path string
}

func (Inline) isData() {}
func (CSVRef) isData() {}
