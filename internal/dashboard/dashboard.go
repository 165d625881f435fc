// Package dashboard runs the plot action: validate the form, compute the
// trajectory, render the three charts and hand them to their surfaces.
//
// Rendering happens off-screen first. Surfaces are only touched once every
// chart rendered successfully, so a failed action leaves the previous plots
// on display.
package dashboard

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/form"
	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
	"github.com/CedoySch/PhysicsLT2.2/internal/metrics"
)

// Surface displays one rendered chart, replacing whatever it showed before.
type Surface interface {
	Display(img image.Image)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(img image.Image)

func (f SurfaceFunc) Display(img image.Image) { f(img) }

// Result is the outcome of one successful plot action.
type Result struct {
	Trajectory *kinematics.Trajectory
	Images     map[chart.Kind]image.Image
	PlottedAt  time.Time
}

// Dashboard owns the three chart surfaces.
type Dashboard struct {
	renderer *chart.Renderer
	surfaces map[chart.Kind]Surface
	logger   *slog.Logger
	last     atomic.Pointer[Result]

	// render draws the charts off-screen; Render outside of tests.
	render func(*chart.Renderer, *kinematics.Trajectory) (map[chart.Kind]image.Image, error)
}

// New creates a dashboard. Every chart kind needs a surface.
func New(renderer *chart.Renderer, surfaces map[chart.Kind]Surface, logger *slog.Logger) (*Dashboard, error) {
	for _, k := range chart.Kinds {
		if surfaces[k] == nil {
			return nil, fmt.Errorf("missing surface for %s chart", k)
		}
	}
	return &Dashboard{
		renderer: renderer,
		surfaces: surfaces,
		logger:   logger,
		render:   Render,
	}, nil
}

// Plot parses the form and, if valid, plots the resulting launch.
func (d *Dashboard) Plot(in form.Input) (*Result, error) {
	p, err := form.Parse(in)
	if err != nil {
		metrics.RecordComputation(ErrorKind(err), 0)
		d.logger.Debug("plot rejected", "component", "dashboard", "error", err)
		return nil, err
	}
	return d.PlotParams(p)
}

// PlotParams computes and displays the charts for already-parsed parameters.
func (d *Dashboard) PlotParams(p kinematics.LaunchParameters) (*Result, error) {
	start := time.Now()

	tr, err := kinematics.Compute(p)
	if err != nil {
		metrics.RecordComputation(ErrorKind(err), time.Since(start))
		d.logger.Debug("plot rejected", "component", "dashboard", "error", err)
		return nil, err
	}

	images, err := d.render(d.renderer, tr)
	if err != nil {
		metrics.RecordComputation(ErrorKind(err), time.Since(start))
		d.logger.Error("chart render failed", "component", "dashboard", "error", err)
		return nil, err
	}

	for _, k := range chart.Kinds {
		d.surfaces[k].Display(images[k])
	}

	res := &Result{Trajectory: tr, Images: images, PlottedAt: time.Now()}
	d.last.Store(res)

	duration := time.Since(start)
	metrics.RecordComputation(OutcomeOK, duration)
	metrics.ObserveFlightTime(tr.Solution().TFlight)
	d.logger.Debug("plotted",
		"component", "dashboard",
		"h0", p.H0,
		"v0", p.V0,
		"angle", p.Angle,
		"flight_time", tr.Solution().TFlight,
		"duration_ms", duration.Milliseconds(),
	)
	return res, nil
}

// Last returns the most recent successful result, or nil.
func (d *Dashboard) Last() *Result {
	return d.last.Load()
}

// Render rasterizes all three charts. Either every image is returned or an error.
func Render(r *chart.Renderer, tr *kinematics.Trajectory) (map[chart.Kind]image.Image, error) {
	images := make(map[chart.Kind]image.Image, len(chart.Kinds))
	for _, fig := range chart.Figures(tr) {
		img, err := r.Image(fig)
		if err != nil {
			return nil, &RenderError{Kind: fig.Kind, Err: err}
		}
		images[fig.Kind] = img
	}
	return images, nil
}

// RenderError reports a chart that could not be drawn.
type RenderError struct {
	Kind chart.Kind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s chart: %v", e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Outcome labels for a plot action.
const (
	OutcomeOK         = "ok"
	OutcomeParse      = "parse"
	OutcomeNoSolution = "no_solution"
	OutcomeRender     = "render"
)

// ErrorKind classifies a plot error into an outcome label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, form.ErrInvalidNumber):
		return OutcomeParse
	case errors.Is(err, kinematics.ErrNoSolution):
		return OutcomeNoSolution
	}
	return OutcomeRender
}

// Message returns the dialog title and text shown to the user for a plot error.
func Message(err error) (title, text string) {
	switch ErrorKind(err) {
	case OutcomeParse:
		return "Input", "Enter valid numeric values"
	case OutcomeNoSolution:
		return "Computation", "No real solutions for the given parameters."
	}
	return "Rendering", "The charts could not be drawn."
}
