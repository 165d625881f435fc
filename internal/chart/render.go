package chart

import (
	"bytes"
	"fmt"
	"image"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"
)

// Format is an encoded image format.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat validates an image format name. Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", string(FormatPNG):
		return FormatPNG, nil
	case string(FormatSVG):
		return FormatSVG, nil
	}
	return "", fmt.Errorf("unsupported image format %q (want png or svg)", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Config holds the output size of rendered charts.
type Config struct {
	WidthPx  int // default: 640
	HeightPx int // default: 360
	DPI      int // default: 96
}

// DefaultConfig returns the chart size used when nothing is configured.
func DefaultConfig() Config {
	return Config{WidthPx: 640, HeightPx: 360, DPI: 96}
}

// Renderer draws figures with gonum/plot. Safe for concurrent use.
type Renderer struct {
	cfg Config
}

// NewRenderer creates a renderer, filling zero config fields with defaults.
func NewRenderer(cfg Config) *Renderer {
	def := DefaultConfig()
	if cfg.WidthPx <= 0 {
		cfg.WidthPx = def.WidthPx
	}
	if cfg.HeightPx <= 0 {
		cfg.HeightPx = def.HeightPx
	}
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	return &Renderer{cfg: cfg}
}

// Config returns the effective configuration.
func (r *Renderer) Config() Config { return r.cfg }

func (r *Renderer) size() (vg.Length, vg.Length) {
	w := vg.Length(r.cfg.WidthPx) * vg.Inch / vg.Length(r.cfg.DPI)
	h := vg.Length(r.cfg.HeightPx) * vg.Inch / vg.Length(r.cfg.DPI)
	return w, h
}

// Plot builds a fresh gonum plot for the figure: series, axis labels,
// legend and grid.
func (r *Renderer) Plot(fig Figure) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, s := range fig.Series {
		if len(s.X) != len(s.Y) {
			return nil, fmt.Errorf("series %q: %d x values, %d y values", s.Label, len(s.X), len(s.Y))
		}
		pts := make(plotter.XYs, len(s.X))
		for i := range s.X {
			pts[i].X = s.X[i]
			pts[i].Y = s.Y[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Label, err)
		}
		line.LineStyle.Color = s.Color
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.Label, line)
	}
	return p, nil
}

// Image rasterizes the figure.
func (r *Renderer) Image(fig Figure) (image.Image, error) {
	c, err := r.raster(fig)
	if err != nil {
		return nil, err
	}
	return c.Image(), nil
}

// Encode renders the figure into the given format.
func (r *Renderer) Encode(fig Figure, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatSVG:
		p, err := r.Plot(fig)
		if err != nil {
			return nil, err
		}
		w, h := r.size()
		c := vgsvg.New(w, h)
		p.Draw(draw.New(c))
		if _, err := c.WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("encoding %s svg: %w", fig.Kind, err)
		}
	case FormatPNG:
		c, err := r.raster(fig)
		if err != nil {
			return nil, err
		}
		if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("encoding %s png: %w", fig.Kind, err)
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) raster(fig Figure) (*vgimg.Canvas, error) {
	p, err := r.Plot(fig)
	if err != nil {
		return nil, err
	}
	w, h := r.size()
	c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(r.cfg.DPI))
	p.Draw(draw.New(c))
	return c, nil
}

// WarmUp renders a throwaway figure so font loading happens before the
// first user request.
func (r *Renderer) WarmUp() error {
	_, err := r.Image(Figure{
		Kind:   KindTrajectory,
		XLabel: "X (m)",
		YLabel: "Y (m)",
		Series: []Series{{Label: "Trajectory", Color: Blue, X: []float64{0, 1}, Y: []float64{0, 1}}},
	})
	return err
}
