package configspace

import (
	"math/rand"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func testSchema() Schema {
	return Schema{
		"num_executors": {Type: "integer", Min: floatPtr(1), Max: floatPtr(10), Default: float64(4)},
		"memory_frac":   {Type: "float", Min: floatPtr(0), Max: floatPtr(1), Default: float64(0.5)},
		"join_strategy": {Type: "categorical", ChoiceValues: []string{"broadcast", "sortmerge"}, Default: "broadcast"},
	}
}

func TestNewConfigSpace(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{name: "valid mixed schema", schema: testSchema(), wantErr: false},
		{
			name:    "integer missing bounds",
			schema:  Schema{"x": {Type: "integer", Default: float64(1)}},
			wantErr: true,
		},
		{
			name:    "categorical missing choices",
			schema:  Schema{"x": {Type: "categorical", Default: "a"}},
			wantErr: true,
		},
		{
			name:    "unknown type",
			schema:  Schema{"x": {Type: "bogus", Default: float64(1)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := NewConfigSpace(tt.schema)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewConfigSpace() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(cs.Parameters) != len(tt.schema) {
				t.Errorf("expected %d parameters, got %d", len(tt.schema), len(cs.Parameters))
			}
		})
	}
}

func TestConfigSpaceDefaultConfiguration(t *testing.T) {
	cs, err := NewConfigSpace(testSchema())
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}

	def := cs.DefaultConfiguration()
	if def.Origin != "Default" {
		t.Errorf("expected Origin=Default, got %q", def.Origin)
	}

	v, ok := def.Get("num_executors")
	if !ok || v.(int) != 4 {
		t.Errorf("expected num_executors default 4, got %v", v)
	}
}

func TestConfigSpaceSampleExcludesDuplicates(t *testing.T) {
	cs, err := NewConfigSpace(Schema{
		"x": {Type: "categorical", ChoiceValues: []string{"a", "b"}, Default: "a"},
	})
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	exclude := map[string]bool{}
	first := cs.Sample(rng, 1, exclude)
	if len(first) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(first))
	}
	exclude[first[0].CanonicalKey()] = true

	second := cs.Sample(rng, 1, exclude)
	if len(second) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(second))
	}
	if second[0].CanonicalKey() == first[0].CanonicalKey() {
		t.Errorf("expected sampling to avoid excluded key, got duplicate %q", first[0].CanonicalKey())
	}
}

func TestConfigurationEqualAndCanonicalKey(t *testing.T) {
	cs, err := NewConfigSpace(testSchema())
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}

	a := cs.DefaultConfiguration()
	b := cs.DefaultConfiguration()
	if !a.Equal(b) {
		t.Errorf("expected two default configurations to be equal")
	}
	if a.CanonicalKey() != b.CanonicalKey() {
		t.Errorf("expected equal canonical keys, got %q vs %q", a.CanonicalKey(), b.CanonicalKey())
	}

	c := a.Clone()
	c.Set("num_executors", 9)
	if a.Equal(c) {
		t.Errorf("expected mutated clone to differ from original")
	}
}

func TestOneExchangeNeighbors(t *testing.T) {
	cs, err := NewConfigSpace(testSchema())
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}

	rng := rand.New(rand.NewSource(2))
	def := cs.DefaultConfiguration()
	neighbors := cs.OneExchangeNeighbors(def, rng, 2)

	if len(neighbors) == 0 {
		t.Fatalf("expected at least one neighbor")
	}
	for _, n := range neighbors {
		diffs := 0
		for i := range n.Values {
			if n.Values[i] != def.Values[i] {
				diffs++
			}
		}
		if diffs != 1 {
			t.Errorf("expected exactly one changed dimension, got %d", diffs)
		}
		if n.Origin != "Local Search Neighbor" {
			t.Errorf("expected Origin=Local Search Neighbor, got %q", n.Origin)
		}
	}
}

func TestNormalizerDegenerateInput(t *testing.T) {
	var n Normalizer
	normalized := n.Fit([]float64{5, 5, 5})
	if len(normalized) != 3 {
		t.Fatalf("expected 3 normalized values, got %d", len(normalized))
	}
	for _, v := range normalized {
		if v != v { // NaN check
			t.Errorf("normalizer produced NaN for degenerate input")
		}
	}
}

func TestNormalizerRoundTrip(t *testing.T) {
	var n Normalizer
	y := []float64{1, 2, 3, 4, 5}
	normalized := n.Fit(y)
	for i, v := range normalized {
		back := n.Inverse(v)
		if diff := back - y[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("round-trip mismatch at %d: got %v, want %v", i, back, y[i])
		}
	}
}
