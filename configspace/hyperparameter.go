// Package configspace declares typed hyperparameters, the configuration
// space they form, and the sampling/neighbor-enumeration operations the
// rest of the engine builds on.
package configspace

import (
	"math"
	"math/rand"
)

// Hyperparameter is a single named, typed dimension of a ConfigSpace.
//
// Three concrete kinds implement it: IntegerParam, RealParam, and
// CategoricalParam — a closed tagged variant per the Design Notes guidance
// on avoiding an open-ended virtual hierarchy where a fixed set of kinds
// suffices.
type Hyperparameter interface {
	// Name returns the hyperparameter's name, unique within its ConfigSpace.
	Name() string
	// Default returns the hyperparameter's default value.
	Default() interface{}
	// NormalizedDefault returns Default mapped into [0, 1].
	NormalizedDefault() float64
	// Sample draws one random value using rng.
	Sample(rng *rand.Rand) interface{}
	// Normalize maps a concrete value into [0, 1].
	Normalize(value interface{}) float64
	// Denormalize maps a [0, 1] value back to the hyperparameter's domain.
	Denormalize(normalized float64) interface{}
	// Neighbors returns up to n alternative values for one-exchange local
	// search, excluding the given value.
	Neighbors(value interface{}, rng *rand.Rand, n int) []interface{}
}

// IntegerParam is a bounded integer hyperparameter.
type IntegerParam struct {
	NameStr      string
	Lower, Upper int
	DefaultValue int
}

func (p *IntegerParam) Name() string          { return p.NameStr }
func (p *IntegerParam) Default() interface{}  { return p.DefaultValue }
func (p *IntegerParam) NormalizedDefault() float64 {
	return p.Normalize(p.DefaultValue)
}

func (p *IntegerParam) Sample(rng *rand.Rand) interface{} {
	if p.Upper <= p.Lower {
		return p.Lower
	}
	return p.Lower + rng.Intn(p.Upper-p.Lower+1)
}

func (p *IntegerParam) Normalize(value interface{}) float64 {
	v := toInt(value)
	if p.Upper == p.Lower {
		return 0
	}
	return float64(v-p.Lower) / float64(p.Upper-p.Lower)
}

func (p *IntegerParam) Denormalize(normalized float64) interface{} {
	v := p.Lower + int(math.Round(normalized*float64(p.Upper-p.Lower)))
	if v < p.Lower {
		v = p.Lower
	}
	if v > p.Upper {
		v = p.Upper
	}
	return v
}

func (p *IntegerParam) Neighbors(value interface{}, rng *rand.Rand, n int) []interface{} {
	v := toInt(value)
	seen := map[int]bool{v: true}
	var out []interface{}
	for offset := 1; len(out) < n && offset <= p.Upper-p.Lower; offset++ {
		for _, cand := range []int{v - offset, v + offset} {
			if cand < p.Lower || cand > p.Upper || seen[cand] {
				continue
			}
			seen[cand] = true
			out = append(out, cand)
			if len(out) >= n {
				break
			}
		}
	}
	return out
}

// RealParam is a bounded continuous hyperparameter with an optional
// quantization step (default 0.05 of the range, matching the declarative
// schema's default `q`).
type RealParam struct {
	NameStr      string
	Lower, Upper float64
	DefaultValue float64
	Quantization float64
}

func (p *RealParam) Name() string         { return p.NameStr }
func (p *RealParam) Default() interface{} { return p.DefaultValue }
func (p *RealParam) NormalizedDefault() float64 {
	return p.Normalize(p.DefaultValue)
}

func (p *RealParam) quant() float64 {
	if p.Quantization > 0 {
		return p.Quantization
	}
	return 0.05 * (p.Upper - p.Lower)
}

func (p *RealParam) Sample(rng *rand.Rand) interface{} {
	if p.Upper <= p.Lower {
		return p.Lower
	}
	v := p.Lower + rng.Float64()*(p.Upper-p.Lower)
	return p.quantize(v)
}

func (p *RealParam) quantize(v float64) float64 {
	q := p.quant()
	if q <= 0 {
		return v
	}
	steps := math.Round((v - p.Lower) / q)
	v = p.Lower + steps*q
	if v < p.Lower {
		v = p.Lower
	}
	if v > p.Upper {
		v = p.Upper
	}
	return v
}

func (p *RealParam) Normalize(value interface{}) float64 {
	v := toFloat(value)
	if p.Upper == p.Lower {
		return 0
	}
	return (v - p.Lower) / (p.Upper - p.Lower)
}

func (p *RealParam) Denormalize(normalized float64) interface{} {
	v := p.Lower + normalized*(p.Upper-p.Lower)
	return p.quantize(v)
}

func (p *RealParam) Neighbors(value interface{}, rng *rand.Rand, n int) []interface{} {
	v := toFloat(value)
	q := p.quant()
	seen := map[float64]bool{v: true}
	var out []interface{}
	for offset := 1; len(out) < n && float64(offset)*q <= (p.Upper-p.Lower); offset++ {
		for _, cand := range []float64{v - float64(offset)*q, v + float64(offset)*q} {
			cand = p.quantize(cand)
			if cand < p.Lower || cand > p.Upper || seen[cand] {
				continue
			}
			seen[cand] = true
			out = append(out, cand)
			if len(out) >= n {
				break
			}
		}
	}
	return out
}

// CategoricalParam is an unordered finite-choice hyperparameter.
type CategoricalParam struct {
	NameStr      string
	Choices      []string
	DefaultValue string
}

func (p *CategoricalParam) Name() string         { return p.NameStr }
func (p *CategoricalParam) Default() interface{} { return p.DefaultValue }

func (p *CategoricalParam) indexOf(value string) int {
	for i, c := range p.Choices {
		if c == value {
			return i
		}
	}
	return -1
}

func (p *CategoricalParam) NormalizedDefault() float64 {
	return p.Normalize(p.DefaultValue)
}

func (p *CategoricalParam) Sample(rng *rand.Rand) interface{} {
	if len(p.Choices) == 0 {
		return p.DefaultValue
	}
	return p.Choices[rng.Intn(len(p.Choices))]
}

func (p *CategoricalParam) Normalize(value interface{}) float64 {
	v, _ := value.(string)
	idx := p.indexOf(v)
	if idx < 0 || len(p.Choices) <= 1 {
		return 0
	}
	return float64(idx) / float64(len(p.Choices)-1)
}

func (p *CategoricalParam) Denormalize(normalized float64) interface{} {
	if len(p.Choices) == 0 {
		return p.DefaultValue
	}
	idx := int(math.Round(normalized * float64(len(p.Choices)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Choices) {
		idx = len(p.Choices) - 1
	}
	return p.Choices[idx]
}

func (p *CategoricalParam) Neighbors(value interface{}, rng *rand.Rand, n int) []interface{} {
	v, _ := value.(string)
	var out []interface{}
	for _, c := range p.Choices {
		if c == v {
			continue
		}
		out = append(out, c)
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func toInt(v interface{}) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(math.Round(x))
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return 0
	}
}
