// Package kinematics computes closed-form projectile motion under constant
// gravity with no drag.
//
// Height over time is h0 + v0y·t − g·t²/2. The landing time is the "+" root
// of that quadratic; the trajectory is sampled at SampleCount points spread
// uniformly over [0, landing time].
package kinematics

import "math"

// toRadians converts degrees to radians.
func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// SolveFlight decomposes the launch velocity and returns the landing time.
// Returns a *NoSolutionError when the projectile never reaches height zero
// at a non-negative time, or when the result overflows float64.
func SolveFlight(p LaunchParameters) (FlightSolution, error) {
	theta := toRadians(p.Angle)
	v0x := p.V0 * math.Cos(theta)
	v0y := p.V0 * math.Sin(theta)

	a := 0.5 * Gravity
	b := -v0y
	c := -p.H0
	d := b*b - 4*a*c

	if d < 0 {
		return FlightSolution{}, &NoSolutionError{
			Params:       p,
			Reason:       ReasonNegativeDiscriminant,
			Discriminant: d,
		}
	}

	root := (-b + math.Sqrt(d)) / (2 * a)
	if !finite(v0x, v0y, d, root) {
		return FlightSolution{}, &NoSolutionError{
			Params:       p,
			Reason:       ReasonNonFinite,
			Discriminant: d,
			Root:         root,
		}
	}
	if root < 0 {
		return FlightSolution{}, &NoSolutionError{
			Params:       p,
			Reason:       ReasonNegativeRoot,
			Discriminant: d,
			Root:         root,
		}
	}

	return FlightSolution{
		TFlight:      root,
		Discriminant: d,
		V0X:          v0x,
		V0Y:          v0y,
	}, nil
}

// Compute solves for the landing time and samples the full trajectory.
func Compute(p LaunchParameters) (*Trajectory, error) {
	sol, err := SolveFlight(p)
	if err != nil {
		return nil, err
	}

	samples := make([]Sample, SampleCount)
	step := sol.TFlight / float64(SampleCount-1)
	for i := range samples {
		t := float64(i) * step
		if i == SampleCount-1 {
			t = sol.TFlight
		}
		samples[i] = stateAt(p.H0, sol.V0X, sol.V0Y, t)
	}

	// A finite landing time can still put x or y out of range.
	for _, s := range samples {
		if !finite(s.T, s.X, s.Y, s.VX, s.VY, s.Speed) {
			return nil, &NoSolutionError{
				Params:       p,
				Reason:       ReasonNonFinite,
				Discriminant: sol.Discriminant,
				Root:         sol.TFlight,
			}
		}
	}

	return &Trajectory{
		params:   p,
		solution: sol,
		samples:  samples,
	}, nil
}

// stateAt evaluates position and velocity at time t.
func stateAt(h0, v0x, v0y, t float64) Sample {
	vy := v0y - Gravity*t
	return Sample{
		T:     t,
		X:     v0x * t,
		Y:     h0 + v0y*t - 0.5*Gravity*t*t,
		VX:    v0x,
		VY:    vy,
		Speed: math.Hypot(v0x, vy),
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
