package diversity

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrUnknownDecay = errors.New("diversity: unknown decay function")

// DecayFunction maps normalized run progress (0 at start, 1 when the budget
// is spent) to a factor in [0, 1]. Every implementation has f(0) = 1 and is
// non-increasing.
type DecayFunction func(progress float64) float64

func Exponential(p float64) float64 { return math.Exp(-clampProgress(p)) }

func Linear(p float64) float64 { return 1 - clampProgress(p) }

func Cosine(p float64) float64 { return 0.5 * (1 + math.Cos(math.Pi*clampProgress(p))) }

const sigmoidSteepness = 10

// Sigmoid is a logistic step centred at half the budget, rescaled so f(0) = 1.
func Sigmoid(p float64) float64 {
	logistic := func(x float64) float64 { return 1 / (1 + math.Exp(sigmoidSteepness*(x-0.5))) }
	return logistic(clampProgress(p)) / logistic(0)
}

// Piecewise decays slowly for the first half of the run, then fast.
func Piecewise(p float64) float64 {
	p = clampProgress(p)
	if p < 0.5 {
		return 1 - p
	}
	return math.Max(0, 1.5-2*p)
}

func clampProgress(p float64) float64 {
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

var decays = map[string]DecayFunction{
	"exponential": Exponential,
	"linear":      Linear,
	"cosine":      Cosine,
	"sigmoid":     Sigmoid,
	"piecewise":   Piecewise,
}

// ParseDecay resolves a configured decay name (case-insensitive).
func ParseDecay(name string) (DecayFunction, error) {
	if name == "" {
		return Exponential, nil
	}
	f, ok := decays[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("parse decay %q: %w", name, ErrUnknownDecay)
	}
	return f, nil
}
