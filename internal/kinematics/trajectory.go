package kinematics

// Trajectory is an immutable, uniformly sampled flight from launch to landing.
type Trajectory struct {
	params   LaunchParameters
	solution FlightSolution
	samples  []Sample
}

// Params returns the launch parameters the trajectory was computed from.
func (tr *Trajectory) Params() LaunchParameters { return tr.params }

// Solution returns the landing-time solution.
func (tr *Trajectory) Solution() FlightSolution { return tr.solution }

// Len returns the number of samples (always SampleCount).
func (tr *Trajectory) Len() int { return len(tr.samples) }

// Samples returns a copy of the sample table.
func (tr *Trajectory) Samples() []Sample {
	out := make([]Sample, len(tr.samples))
	copy(out, tr.samples)
	return out
}

// At returns the i-th sample.
func (tr *Trajectory) At(i int) Sample { return tr.samples[i] }

// Times returns the sample times in seconds.
func (tr *Trajectory) Times() []float64 {
	return tr.series(func(s Sample) float64 { return s.T })
}

// Xs returns horizontal positions in meters.
func (tr *Trajectory) Xs() []float64 {
	return tr.series(func(s Sample) float64 { return s.X })
}

// Ys returns heights in meters.
func (tr *Trajectory) Ys() []float64 {
	return tr.series(func(s Sample) float64 { return s.Y })
}

// Speeds returns speed magnitudes in m/s.
func (tr *Trajectory) Speeds() []float64 {
	return tr.series(func(s Sample) float64 { return s.Speed })
}

func (tr *Trajectory) series(f func(Sample) float64) []float64 {
	out := make([]float64, len(tr.samples))
	for i, s := range tr.samples {
		out[i] = f(s)
	}
	return out
}
