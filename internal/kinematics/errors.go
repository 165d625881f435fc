package kinematics

import (
	"errors"
	"fmt"
)

// ErrNoSolution is matched by every NoSolutionError.
var ErrNoSolution = errors.New("no real solutions for the given parameters")

// Reason identifies why no landing time exists.
type Reason string

const (
	// ReasonNegativeDiscriminant: the height never reaches zero.
	ReasonNegativeDiscriminant Reason = "negative_discriminant"
	// ReasonNegativeRoot: height zero is only crossed before launch.
	ReasonNegativeRoot Reason = "negative_root"
	// ReasonNonFinite: the flight overflows float64 (or an input is NaN/Inf).
	ReasonNonFinite Reason = "non_finite"
)

// NoSolutionError reports a launch configuration with no non-negative landing time.
type NoSolutionError struct {
	Params       LaunchParameters
	Reason       Reason
	Discriminant float64
	Root         float64 // set for ReasonNegativeRoot and ReasonNonFinite
}

func (e *NoSolutionError) Error() string {
	switch e.Reason {
	case ReasonNonFinite:
		return fmt.Sprintf("%s: flight is not representable (discriminant %.6g, root %.6g; h0=%g, v0=%g, angle=%g)",
			ErrNoSolution, e.Discriminant, e.Root, e.Params.H0, e.Params.V0, e.Params.Angle)
	case ReasonNegativeRoot:
		return fmt.Sprintf("%s: landing root %.6g s is negative (h0=%g, v0=%g, angle=%g)",
			ErrNoSolution, e.Root, e.Params.H0, e.Params.V0, e.Params.Angle)
	default:
		return fmt.Sprintf("%s: discriminant %.6g < 0 (h0=%g, v0=%g, angle=%g)",
			ErrNoSolution, e.Discriminant, e.Params.H0, e.Params.V0, e.Params.Angle)
	}
}

func (e *NoSolutionError) Is(target error) bool {
	return target == ErrNoSolution
}
