package inference

import (
	"context"
	"sync"
	"time"
)

// Inference is the outcome of one evaluation of the model.
type Inference struct {
	Topic     string
	Value     float64
	Timestamp int64
	Deviation float64
}

// Deviation draws uniform(0, max) - max/2 from r. A zero bound always yields
// exactly zero.
func Deviation(maxDeviation int64, r RandomSource) float64 {
	if maxDeviation == 0 {
		return 0
	}
	bound := float64(maxDeviation)
	return bound*r.Float64() - bound/2
}

// Generator evaluates the linear model. It is safe for concurrent use;
// parameters can be swapped while requests are in flight.
type Generator struct {
	mu     sync.RWMutex
	params Params
	loc    *time.Location

	clock Clock
	rand  RandomSource
}

// NewGenerator validates params and returns a generator reading clock and
// drawing deviations from rand. Nil clock or rand fall back to the system
// clock and a runtime-seeded source.
func NewGenerator(params Params, clock Clock, rand RandomSource) (*Generator, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if rand == nil {
		rand = NewRandomSource()
	}

	g := &Generator{clock: clock, rand: rand}
	if err := g.SetParams(params); err != nil {
		return nil, err
	}
	return g, nil
}

// SetParams replaces the model parameters. The previous parameters stay in
// effect if the new timezone cannot be resolved.
func (g *Generator) SetParams(params Params) error {
	loc, err := params.LoadLocation()
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.params = params
	g.loc = loc
	return nil
}

// Params returns a snapshot of the current parameters.
func (g *Generator) Params() Params {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.params
}

// Now reads the generator's clock.
func (g *Generator) Now() time.Time {
	return g.clock.Now()
}

// Infer evaluates the model at the current time.
func (g *Generator) Infer(ctx context.Context) (Inference, error) {
	if err := ctx.Err(); err != nil {
		return Inference{}, err
	}
	return g.InferAt(g.clock.Now()), nil
}

// InferAt evaluates the model at t with the configured deviation bound.
func (g *Generator) InferAt(t time.Time) Inference {
	return g.InferWith(t, g.Params().MaxDeviation)
}

// InferWith evaluates the model at t using maxDeviation instead of the
// configured bound. The timestamp is whole epoch seconds, floored.
func (g *Generator) InferWith(t time.Time, maxDeviation int64) Inference {
	g.mu.RLock()
	params := g.params
	loc := g.loc
	g.mu.RUnlock()

	ts := t.In(loc).Unix()
	deviation := Deviation(maxDeviation, g.rand)

	return Inference{
		Value:     params.Slope*float64(ts) + params.Intercept + deviation,
		Timestamp: ts,
		Deviation: deviation,
	}
}
