package configspace

import (
	"encoding/json"
	"math/rand"
	"sort"

	"github.com/wuhaolei455/mfbo-go/mfboerrors"
)

// ConfigSpace is an immutable, ordered collection of hyperparameters created
// once from a declarative schema.
type ConfigSpace struct {
	Parameters []Hyperparameter
	indexOf    map[string]int
}

// Schema is the declarative JSON config-space schema from the external
// interface contract:
//
//	{ "<param_name>": {
//	    "type": "integer"|"float"|"categorical",
//	    "min"?, "max"?, "q"?, "choice_values"?, "default"
//	} }
type Schema map[string]SchemaParam

// SchemaParam is one entry of Schema.
type SchemaParam struct {
	Type         string        `json:"type"`
	Min          *float64      `json:"min,omitempty"`
	Max          *float64      `json:"max,omitempty"`
	Q            *float64      `json:"q,omitempty"`
	ChoiceValues []string      `json:"choice_values,omitempty"`
	Default      interface{}   `json:"default"`
}

// NewConfigSpace builds a ConfigSpace from a decoded Schema. Parameter order
// follows Go map iteration sorted by name, so that the resulting space has a
// deterministic column order independent of JSON object key order.
func NewConfigSpace(schema Schema) (*ConfigSpace, error) {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	cs := &ConfigSpace{indexOf: make(map[string]int, len(names))}
	for i, name := range names {
		p, err := buildParam(name, schema[name])
		if err != nil {
			return nil, err
		}
		cs.Parameters = append(cs.Parameters, p)
		cs.indexOf[name] = i
	}
	return cs, nil
}

// ParseSchemaJSON decodes and builds a ConfigSpace from raw JSON.
func ParseSchemaJSON(data []byte) (*ConfigSpace, error) {
	var schema Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, mfboerrors.ConfigurationError("invalid config space schema: %v", err)
	}
	return NewConfigSpace(schema)
}

func buildParam(name string, s SchemaParam) (Hyperparameter, error) {
	switch s.Type {
	case "integer":
		if s.Min == nil || s.Max == nil {
			return nil, mfboerrors.ConfigurationError("integer parameter %q requires min/max", name)
		}
		def, ok := s.Default.(float64)
		if !ok {
			return nil, mfboerrors.ConfigurationError("integer parameter %q requires a numeric default", name)
		}
		return &IntegerParam{NameStr: name, Lower: int(*s.Min), Upper: int(*s.Max), DefaultValue: int(def)}, nil
	case "float":
		if s.Min == nil || s.Max == nil {
			return nil, mfboerrors.ConfigurationError("float parameter %q requires min/max", name)
		}
		def, ok := s.Default.(float64)
		if !ok {
			return nil, mfboerrors.ConfigurationError("float parameter %q requires a numeric default", name)
		}
		q := 0.0
		if s.Q != nil {
			q = *s.Q
		}
		return &RealParam{NameStr: name, Lower: *s.Min, Upper: *s.Max, DefaultValue: def, Quantization: q}, nil
	case "categorical":
		if len(s.ChoiceValues) == 0 {
			return nil, mfboerrors.ConfigurationError("categorical parameter %q requires choice_values", name)
		}
		def, ok := s.Default.(string)
		if !ok {
			return nil, mfboerrors.ConfigurationError("categorical parameter %q requires a string default", name)
		}
		return &CategoricalParam{NameStr: name, Choices: s.ChoiceValues, DefaultValue: def}, nil
	default:
		return nil, mfboerrors.ConfigurationError("unknown parameter type %q for %q", s.Type, name)
	}
}

// DefaultConfiguration returns the configuration with every parameter set to
// its declared default.
func (cs *ConfigSpace) DefaultConfiguration() *Configuration {
	values := make([]interface{}, len(cs.Parameters))
	for i, p := range cs.Parameters {
		values[i] = p.Default()
	}
	return &Configuration{Space: cs, Values: values, Origin: "Default"}
}

// Sample draws n random configurations, excluding any matching a
// CanonicalKey present in exclude.
func (cs *ConfigSpace) Sample(rng *rand.Rand, n int, exclude map[string]bool) []*Configuration {
	out := make([]*Configuration, 0, n)
	// Bound retries so a saturated space (exclude covers everything
	// reachable) cannot spin forever.
	maxAttempts := n * 50
	if maxAttempts < 200 {
		maxAttempts = 200
	}
	for attempt := 0; len(out) < n && attempt < maxAttempts; attempt++ {
		cfg := cs.sampleOne(rng)
		key := cfg.CanonicalKey()
		if exclude != nil && exclude[key] {
			continue
		}
		if exclude == nil {
			exclude = make(map[string]bool)
		}
		exclude[key] = true
		out = append(out, cfg)
	}
	return out
}

func (cs *ConfigSpace) sampleOne(rng *rand.Rand) *Configuration {
	values := make([]interface{}, len(cs.Parameters))
	for i, p := range cs.Parameters {
		values[i] = p.Sample(rng)
	}
	return &Configuration{Space: cs, Values: values, Origin: "Random Sample"}
}

// NormalizedRow returns the configuration's values mapped to [0,1] per
// parameter, used to build the dense feature matrix surrogates train on.
func (cs *ConfigSpace) NormalizedRow(c *Configuration) []float64 {
	row := make([]float64, len(cs.Parameters))
	for i, p := range cs.Parameters {
		row[i] = p.Normalize(c.Values[i])
	}
	return row
}

// OneExchangeNeighbors enumerates configurations that differ from c in
// exactly one dimension, up to maxPerParam alternatives per dimension.
func (cs *ConfigSpace) OneExchangeNeighbors(c *Configuration, rng *rand.Rand, maxPerParam int) []*Configuration {
	var out []*Configuration
	for i, p := range cs.Parameters {
		for _, alt := range p.Neighbors(c.Values[i], rng, maxPerParam) {
			n := c.Clone()
			n.Values[i] = alt
			n.Origin = "Local Search Neighbor"
			out = append(out, n)
		}
	}
	return out
}

// IndexOf returns the column index of a named parameter.
func (cs *ConfigSpace) IndexOf(name string) (int, bool) {
	idx, ok := cs.indexOf[name]
	return idx, ok
}
