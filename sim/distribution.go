package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// Distribution yields successive non-negative delays.
// Implementations may keep state (start-point variants), so each process gets its own instance.
type Distribution interface {
	Next(rng *rand.Rand) float64
}

// Deterministic always returns Time.
type Deterministic struct {
	Time float64
}

func (d *Deterministic) Next(_ *rand.Rand) float64 { return d.Time }

// DeterministicStartPoint returns Start first, then Time forever.
type DeterministicStartPoint struct {
	Start   float64
	Time    float64
	started bool
}

func (d *DeterministicStartPoint) Next(_ *rand.Rand) float64 {
	if !d.started {
		d.started = true
		return d.Start
	}
	return d.Time
}

// Uniform draws from [Min, Max).
type Uniform struct {
	Min, Max float64
}

func (d *Uniform) Next(rng *rand.Rand) float64 {
	return d.Min + rng.Float64()*(d.Max-d.Min)
}

// Exponential draws whole time units with the given mean, never less than 1.
type Exponential struct {
	Mean float64
}

func (d *Exponential) Next(rng *rand.Rand) float64 {
	return math.Max(1, math.Floor(rng.ExpFloat64()*d.Mean))
}

// ExponentialStartPoint returns Start first, then behaves like Exponential.
type ExponentialStartPoint struct {
	Start   float64
	Mean    float64
	started bool
}

func (d *ExponentialStartPoint) Next(rng *rand.Rand) float64 {
	if !d.started {
		d.started = true
		return d.Start
	}
	return math.Max(1, math.Floor(rng.ExpFloat64()*d.Mean))
}

// Distribution kind names accepted by DistributionSpec.
const (
	DistDeterministic           = "deterministic"
	DistDeterministicStartPoint = "deterministic-start"
	DistUniform                 = "uniform"
	DistExponential             = "exponential"
	DistExponentialStartPoint   = "exponential-start"
	DistGamma                   = "gamma"
	DistWeibull                 = "weibull"
)

// ValidDistributions is the set of recognized distribution kinds.
var ValidDistributions = map[string]bool{
	DistDeterministic:           true,
	DistDeterministicStartPoint: true,
	DistUniform:                 true,
	DistExponential:             true,
	DistExponentialStartPoint:   true,
	DistGamma:                   true,
	DistWeibull:                 true,
}

// DistributionSpec is the configuration form of a Distribution. Build returns a
// fresh instance on every call.
type DistributionSpec struct {
	Kind  string  `yaml:"kind"`
	Time  float64 `yaml:"time,omitempty"`
	Start float64 `yaml:"start,omitempty"`
	Min   float64 `yaml:"min,omitempty"`
	Max   float64 `yaml:"max,omitempty"`
	Mean  float64 `yaml:"mean,omitempty"`
	CV    float64 `yaml:"cv,omitempty"` // gamma and weibull; 0 means 1
}

// Validate checks the kind and parameter ranges.
func (d DistributionSpec) Validate() error {
	if !ValidDistributions[d.Kind] {
		return fmt.Errorf("unknown distribution %q", d.Kind)
	}
	if d.Time < 0 || d.Start < 0 {
		return fmt.Errorf("distribution %s: time and start must be >= 0", d.Kind)
	}
	switch d.Kind {
	case DistUniform:
		if d.Min < 0 || d.Max < d.Min {
			return fmt.Errorf("distribution uniform: need 0 <= min <= max, got [%v, %v]", d.Min, d.Max)
		}
	case DistExponential, DistExponentialStartPoint, DistGamma, DistWeibull:
		if d.Mean <= 0 {
			return fmt.Errorf("distribution %s: mean must be > 0, got %v", d.Kind, d.Mean)
		}
	}
	if d.CV < 0 {
		return fmt.Errorf("distribution %s: cv must be >= 0, got %v", d.Kind, d.CV)
	}
	return nil
}

// Build creates a new Distribution from the spec.
func (d DistributionSpec) Build() (Distribution, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	switch d.Kind {
	case DistDeterministic:
		return &Deterministic{Time: d.Time}, nil
	case DistDeterministicStartPoint:
		return &DeterministicStartPoint{Start: d.Start, Time: d.Time}, nil
	case DistUniform:
		return &Uniform{Min: d.Min, Max: d.Max}, nil
	case DistExponential:
		return &Exponential{Mean: d.Mean}, nil
	case DistGamma:
		return &Gamma{Mean: d.Mean, CV: d.CV}, nil
	case DistWeibull:
		return &Weibull{Mean: d.Mean, CV: d.CV}, nil
	default:
		return &ExponentialStartPoint{Start: d.Start, Mean: d.Mean}, nil
	}
}

// Clone returns an independent copy of a built-in distribution with its
// start-point state reset. Unknown implementations are returned as is.
func Clone(d Distribution) Distribution {
	switch v := d.(type) {
	case *Deterministic:
		c := *v
		return &c
	case *DeterministicStartPoint:
		return &DeterministicStartPoint{Start: v.Start, Time: v.Time}
	case *Uniform:
		c := *v
		return &c
	case *Exponential:
		c := *v
		return &c
	case *ExponentialStartPoint:
		return &ExponentialStartPoint{Start: v.Start, Mean: v.Mean}
	case *Gamma:
		c := *v
		return &c
	case *Weibull:
		return &Weibull{Mean: v.Mean, CV: v.CV}
	default:
		return d
	}
}
