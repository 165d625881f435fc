// Command plotctl renders the three projectile charts to files.
//
//	plotctl -h0 0 -v0 50 -angle 45 -out ./plots -format svg
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/dashboard"
	"github.com/CedoySch/PhysicsLT2.2/internal/form"
	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plotctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	h0 := fs.String("h0", "", "initial height in meters")
	v0 := fs.String("v0", "", "initial speed in m/s")
	angle := fs.String("angle", "", "launch angle in degrees")
	out := fs.String("out", ".", "output directory")
	format := fs.String("format", "png", "image format (png or svg)")
	width := fs.Int("width", 0, "image width in pixels (default 640)")
	height := fs.Int("height", 0, "image height in pixels (default 360)")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	f, err := chart.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 2
	}

	p, err := form.Parse(form.Input{H0: *h0, V0: *v0, Angle: *angle})
	if err != nil {
		return fail(stderr, logger, err)
	}
	tr, err := kinematics.Compute(p)
	if err != nil {
		return fail(stderr, logger, err)
	}

	renderer := chart.NewRenderer(chart.Config{WidthPx: *width, HeightPx: *height})
	files, err := encodeAll(renderer, tr, f)
	if err != nil {
		return fail(stderr, logger, err)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintln(stderr, "ERROR creating output directory:", err)
		return 1
	}
	for _, k := range chart.Kinds {
		path := filepath.Join(*out, string(k)+"."+string(f))
		if err := os.WriteFile(path, files[k], 0o644); err != nil {
			fmt.Fprintln(stderr, "ERROR writing chart:", err)
			return 1
		}
		logger.Debug("chart written", "kind", string(k), "path", path, "bytes", len(files[k]))
	}

	sol := tr.Solution()
	last := tr.At(tr.Len() - 1)
	fmt.Fprintf(stdout, "Flight time: %.4f s\n", sol.TFlight)
	fmt.Fprintf(stdout, "Range: %.2f m\n", last.X)
	fmt.Fprintf(stdout, "Wrote %d charts to %s\n", len(chart.Kinds), *out)
	return 0
}

// encodeAll renders every chart in memory. Nothing is returned unless all
// of them succeed.
func encodeAll(renderer *chart.Renderer, tr *kinematics.Trajectory, f chart.Format) (map[chart.Kind][]byte, error) {
	files := make(map[chart.Kind][]byte, len(chart.Kinds))
	for _, fig := range chart.Figures(tr) {
		data, err := renderer.Encode(fig, f)
		if err != nil {
			return nil, &dashboard.RenderError{Kind: fig.Kind, Err: err}
		}
		files[fig.Kind] = data
	}
	return files, nil
}

func fail(stderr io.Writer, logger *slog.Logger, err error) int {
	title, text := dashboard.Message(err)
	fmt.Fprintf(stderr, "%s: %s\n", title, text)

	var nse *kinematics.NoSolutionError
	if errors.As(err, &nse) {
		logger.Debug("no solution", "reason", string(nse.Reason), "discriminant", nse.Discriminant)
	} else {
		logger.Debug("plot failed", "error", err)
	}
	return 1
}
