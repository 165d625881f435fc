// Package chart describes the three projectile plots and renders them with
// gonum/plot.
package chart

import (
	"fmt"
	"image/color"

	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
)

// Kind identifies one of the three plots.
type Kind string

const (
	KindTrajectory  Kind = "trajectory"
	KindSpeed       Kind = "speed"
	KindCoordinates Kind = "coordinates"
)

// Kinds lists every plot in display order.
var Kinds = []Kind{KindTrajectory, KindSpeed, KindCoordinates}

// ParseKind validates a plot name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

// Caption is the heading shown above each plot.
func (k Kind) Caption() string {
	switch k {
	case KindTrajectory:
		return "Trajectory"
	case KindSpeed:
		return "Speed vs time"
	case KindCoordinates:
		return "Coordinates vs time"
	}
	return string(k)
}

var (
	Blue   = color.RGBA{R: 0x1f, G: 0x3f, B: 0xd6, A: 0xff}
	Green  = color.RGBA{R: 0x1a, G: 0x9e, B: 0x3a, A: 0xff}
	Red    = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	Orange = color.RGBA{R: 0xff, G: 0x8c, B: 0x00, A: 0xff}
)

// Series is one labelled line.
type Series struct {
	Label string
	Color color.RGBA
	X     []float64
	Y     []float64
}

// Figure is a complete, renderer-independent description of one plot.
type Figure struct {
	Kind   Kind
	XLabel string
	YLabel string
	Series []Series
}

// Figures builds all three plots for a trajectory, in display order.
func Figures(tr *kinematics.Trajectory) []Figure {
	figs := make([]Figure, len(Kinds))
	for i, k := range Kinds {
		figs[i] = build(k, tr)
	}
	return figs
}

// FigureFor builds a single plot.
func FigureFor(kind Kind, tr *kinematics.Trajectory) (Figure, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Figure{}, err
	}
	return build(kind, tr), nil
}

func build(kind Kind, tr *kinematics.Trajectory) Figure {
	switch kind {
	case KindSpeed:
		return Figure{
			Kind:   kind,
			XLabel: "Time (s)",
			YLabel: "Speed (m/s)",
			Series: []Series{
				{Label: "Speed", Color: Green, X: tr.Times(), Y: tr.Speeds()},
			},
		}
	case KindCoordinates:
		times := tr.Times()
		return Figure{
			Kind:   kind,
			XLabel: "Time (s)",
			YLabel: "Coordinates (m)",
			Series: []Series{
				{Label: "X (m)", Color: Red, X: times, Y: tr.Xs()},
				{Label: "Y (m)", Color: Orange, X: times, Y: tr.Ys()},
			},
		}
	default:
		return Figure{
			Kind:   KindTrajectory,
			XLabel: "X (m)",
			YLabel: "Y (m)",
			Series: []Series{
				{Label: "Trajectory", Color: Blue, X: tr.Xs(), Y: tr.Ys()},
			},
		}
	}
}
