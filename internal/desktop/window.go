// Package desktop is the fyne front-end: three input fields, a plot button
// and three chart panes that the dashboard fills.
package desktop

import (
	"fmt"
	"image"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/dashboard"
	"github.com/CedoySch/PhysicsLT2.2/internal/form"
)

// Window dimensions
const (
	WindowWidth  = 1200
	WindowHeight = 800
	ControlWidth = 260
)

// Chart pane minimum size
const (
	ChartMinWidth  = 640
	ChartMinHeight = 220
)

const Title = "Projectile Motion Visualization"

// Window is the main application window.
type Window struct {
	win  fyne.Window
	dash *dashboard.Dashboard

	height *widget.Entry
	speed  *widget.Entry
	angle  *widget.Entry
	button *widget.Button
	status *widget.Label
	charts map[chart.Kind]*canvas.Image

	logger *slog.Logger
	// alert shows an error to the user; replaced in tests.
	alert func(title, text string)
}

// NewWindow builds the window on app. Call ShowAndRun on the result.
func NewWindow(app fyne.App, renderer *chart.Renderer, logger *slog.Logger) (*Window, error) {
	w := &Window{
		win:    app.NewWindow(Title),
		height: newEntry("e.g. 0"),
		speed:  newEntry("e.g. 50"),
		angle:  newEntry("e.g. 45"),
		status: widget.NewLabel(""),
		charts: make(map[chart.Kind]*canvas.Image, len(chart.Kinds)),
		logger: logger,
	}
	w.alert = func(title, text string) {
		dialog.ShowInformation(title, text, w.win)
	}

	surfaces := make(map[chart.Kind]dashboard.Surface, len(chart.Kinds))
	for _, k := range chart.Kinds {
		img := canvas.NewImageFromImage(nil)
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(ChartMinWidth, ChartMinHeight))
		w.charts[k] = img
		surfaces[k] = imageSurface(img)
	}

	dash, err := dashboard.New(renderer, surfaces, logger)
	if err != nil {
		return nil, fmt.Errorf("desktop: %w", err)
	}
	w.dash = dash

	w.button = widget.NewButton("Plot graphs", w.Plot)
	w.status.Wrapping = fyne.TextWrapWord

	w.win.SetContent(w.layout())
	w.win.Resize(fyne.NewSize(WindowWidth, WindowHeight))
	return w, nil
}

func newEntry(placeholder string) *widget.Entry {
	e := widget.NewEntry()
	e.SetPlaceHolder(placeholder)
	return e
}

func imageSurface(img *canvas.Image) dashboard.Surface {
	return dashboard.SurfaceFunc(func(src image.Image) {
		img.Image = src
		img.Refresh()
	})
}

func (w *Window) layout() fyne.CanvasObject {
	controls := container.NewVBox(
		widget.NewLabel("Initial height (m)"),
		w.height,
		widget.NewLabel("Initial speed (m/s)"),
		w.speed,
		widget.NewLabel("Launch angle (degrees)"),
		w.angle,
		w.button,
		w.status,
	)

	panes := make([]fyne.CanvasObject, 0, len(chart.Kinds))
	for _, k := range chart.Kinds {
		caption := widget.NewLabelWithStyle(k.Caption(), fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
		panes = append(panes, container.NewBorder(caption, nil, nil, nil, w.charts[k]))
	}
	charts := container.NewGridWithRows(len(panes), panes...)

	split := container.NewHSplit(container.NewPadded(controls), charts)
	split.SetOffset(float64(ControlWidth) / WindowWidth)
	return split
}

// Plot runs one plot action with the current field values. Errors are shown
// in a dialog and leave the charts as they were.
func (w *Window) Plot() {
	res, err := w.dash.Plot(form.Input{
		H0:    w.height.Text,
		V0:    w.speed.Text,
		Angle: w.angle.Text,
	})
	if err != nil {
		title, text := dashboard.Message(err)
		w.logger.Debug("plot failed", "component", "desktop", "kind", dashboard.ErrorKind(err))
		w.alert(title, text)
		return
	}

	sol := res.Trajectory.Solution()
	last := res.Trajectory.At(res.Trajectory.Len() - 1)
	w.status.SetText(fmt.Sprintf("Flight time %.3f s, range %.2f m", sol.TFlight, last.X))
}

// ShowAndRun displays the window and blocks until it is closed.
func (w *Window) ShowAndRun() {
	w.win.ShowAndRun()
}
