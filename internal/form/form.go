// Package form validates the three free-text launch fields.
package form

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
)

// Field names, as used in error reports and query parameters.
const (
	FieldHeight = "h0"
	FieldSpeed  = "v0"
	FieldAngle  = "angle"
)

// ErrInvalidNumber is matched by every ParseError.
var ErrInvalidNumber = errors.New("enter valid numeric values")

// Input is the raw text of the three form fields.
type Input struct {
	H0    string `json:"h0"`
	V0    string `json:"v0"`
	Angle string `json:"angle"`
}

// ParseError reports the first field that is not a finite real number.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: field %s: %q is not a number", ErrInvalidNumber, e.Field, e.Value)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidNumber
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts the three fields into launch parameters.
// Fields are checked in order h0, v0, angle; the first failure is returned.
// No range checks are applied.
func Parse(in Input) (kinematics.LaunchParameters, error) {
	h0, err := parseField(FieldHeight, in.H0)
	if err != nil {
		return kinematics.LaunchParameters{}, err
	}
	v0, err := parseField(FieldSpeed, in.V0)
	if err != nil {
		return kinematics.LaunchParameters{}, err
	}
	angle, err := parseField(FieldAngle, in.Angle)
	if err != nil {
		return kinematics.LaunchParameters{}, err
	}
	return kinematics.LaunchParameters{H0: h0, V0: v0, Angle: angle}, nil
}

func parseField(name, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Field: name, Value: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Field: name, Value: raw, Err: errors.New("value is not finite")}
	}
	return v, nil
}
