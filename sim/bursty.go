package sim

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Gamma draws Gamma-distributed delays with the given mean and coefficient of
// variation. CV > 1 gives bursty emission; CV 0 means 1.
type Gamma struct {
	Mean float64
	CV   float64
}

func (d *Gamma) Next(rng *rand.Rand) float64 {
	cv := d.CV
	if cv <= 0 {
		cv = 1
	}
	// shape = 1/CV², scale = mean * CV²
	shape := 1 / (cv * cv)
	if shape < 0.01 {
		return rng.ExpFloat64() * d.Mean
	}
	return gammaRand(rng, shape, d.Mean*cv*cv)
}

// gammaRand samples Gamma(shape, scale) with Marsaglia-Tsang for shape >= 1
// and Gamma(a) = Gamma(a+1) * U^(1/a) below.
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return gammaRand(rng, shape+1, scale) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// Weibull draws Weibull-distributed delays with the given mean and coefficient
// of variation. CV 0 means 1.
type Weibull struct {
	Mean float64
	CV   float64

	shape, scale float64 // derived on first use
}

func (d *Weibull) Next(rng *rand.Rand) float64 {
	if d.shape == 0 {
		cv := d.CV
		if cv <= 0 {
			cv = 1
		}
		d.shape = weibullShapeFromCV(cv)
		d.scale = d.Mean / math.Gamma(1+1/d.shape)
	}
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	return d.scale * math.Pow(-math.Log(u), 1/d.shape)
}

// weibullShapeFromCV finds k such that CV² = Γ(1+2/k)/Γ(1+1/k)² - 1 by
// bisection over [0.1, 100].
func weibullShapeFromCV(target float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		cv := weibullCV(mid)
		if math.Abs(cv-target) < 0.001 {
			return mid
		}
		// CV decreases with k
		if cv > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibull shape did not converge for CV=%.3f; using k=%.3f", target, (lo+hi)/2)
	return (lo + hi) / 2
}

func weibullCV(k float64) float64 {
	g1 := math.Gamma(1 + 1/k)
	g2 := math.Gamma(1 + 2/k)
	return math.Sqrt(g2/(g1*g1) - 1)
}
