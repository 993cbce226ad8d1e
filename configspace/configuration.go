package configspace

import (
	"fmt"
	"sort"
	"strings"
)

// Configuration is an ordered tuple of typed values aligned to a ConfigSpace.
//
// Two configurations are equal iff all typed values are equal; CanonicalKey
// provides the corresponding hash/dedup key.
type Configuration struct {
	Space *ConfigSpace
	// Values holds one entry per Space.Parameters, same order.
	Values []interface{}
	// Origin is a human-readable provenance tag: "Default", "Random Sample",
	// "BO Acquisition", "Warm Start <task_id>", "Local Search Neighbor", etc.
	Origin string
	// LowDimProjection maps surrogate-space parameter names to their values,
	// populated by a Compressor when the search happens in a reduced space.
	LowDimProjection map[string]float64
}

// Get returns the value of the named hyperparameter.
func (c *Configuration) Get(name string) (interface{}, bool) {
	idx, ok := c.Space.indexOf[name]
	if !ok {
		return nil, false
	}
	return c.Values[idx], true
}

// Set assigns the value of the named hyperparameter, returning false if the
// name is unknown to the owning space.
func (c *Configuration) Set(name string, value interface{}) bool {
	idx, ok := c.Space.indexOf[name]
	if !ok {
		return false
	}
	c.Values[idx] = value
	return true
}

// Clone returns a deep-enough copy: a new Values slice and a new
// LowDimProjection map, sharing the immutable Space pointer.
func (c *Configuration) Clone() *Configuration {
	values := make([]interface{}, len(c.Values))
	copy(values, c.Values)

	var proj map[string]float64
	if c.LowDimProjection != nil {
		proj = make(map[string]float64, len(c.LowDimProjection))
		for k, v := range c.LowDimProjection {
			proj[k] = v
		}
	}

	return &Configuration{Space: c.Space, Values: values, Origin: c.Origin, LowDimProjection: proj}
}

// Equal reports whether two configurations hold identical typed values.
// Space identity is not checked beyond parameter count/order, matching the
// original's dict-equality semantics.
func (c *Configuration) Equal(other *Configuration) bool {
	if other == nil || len(c.Values) != len(other.Values) {
		return false
	}
	for i := range c.Values {
		if fmt.Sprint(c.Values[i]) != fmt.Sprint(other.Values[i]) {
			return false
		}
	}
	return true
}

// CanonicalKey returns a stable string key suitable for deduplication,
// equivalent to the original's "canonical dict string".
func (c *Configuration) CanonicalKey() string {
	names := make([]string, len(c.Space.Parameters))
	for i, p := range c.Space.Parameters {
		names[i] = p.Name()
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var b strings.Builder
	for i, name := range sorted {
		idx := c.Space.indexOf[name]
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%s=%v", name, c.Values[idx])
	}
	return b.String()
}

// Dictionary returns a name->value map, mirroring get_dictionary() in the
// original for logging purposes.
func (c *Configuration) Dictionary() map[string]interface{} {
	m := make(map[string]interface{}, len(c.Values))
	for i, p := range c.Space.Parameters {
		m[p.Name()] = c.Values[i]
	}
	return m
}
