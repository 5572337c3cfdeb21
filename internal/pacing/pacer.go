// Package pacing spaces sends out in time: randomized per-send delays plus an optional global rate cap.
package pacing

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer draws a delay uniformly from [0, Max). A non-positive Max disables it.
type Pacer struct {
	Max time.Duration
	// Draw returns a value in [0, max). Nil uses math/rand/v2.
	Draw func(max time.Duration) time.Duration
}

// Delay returns the next delay. Draws outside [0, Max) are clamped.
func (p Pacer) Delay() time.Duration {
	if p.Max <= 0 {
		return 0
	}
	draw := p.Draw
	if draw == nil {
		draw = rand.N[time.Duration]
	}
	d := draw(p.Max)
	if d < 0 {
		return 0
	}
	if d >= p.Max {
		return p.Max - 1
	}
	return d
}

// Wait sleeps for one drawn delay. It returns ctx.Err() if the context ends first.
// Only the calling goroutine blocks.
func (p Pacer) Wait(ctx context.Context) error {
	return sleep(ctx, p.Delay())
}

// Chain adds up the delays of several windows, e.g. a per-send window and an outer window.
type Chain []Pacer

func (c Chain) Delay() time.Duration {
	var total time.Duration
	for _, p := range c {
		total += p.Delay()
	}
	return total
}

func (c Chain) Wait(ctx context.Context) error {
	return sleep(ctx, c.Delay())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
