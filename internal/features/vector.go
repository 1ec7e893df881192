package features

// Vector is one model-ready row. Columns is the registry's column order and
// Values[i] belongs to Columns[i].
type Vector struct {
	Columns []string
	Values  []float64
}

// Get returns the value of the named column.
func (v Vector) Get(name string) (float64, bool) {
	for i, c := range v.Columns {
		if c == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Map returns the vector as a column -> value map.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Columns))
	for i, c := range v.Columns {
		m[c] = v.Values[i]
	}
	return m
}
