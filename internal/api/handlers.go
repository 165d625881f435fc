package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/CedoySch/PhysicsLT2.2/internal/cache"
	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/dashboard"
	"github.com/CedoySch/PhysicsLT2.2/internal/form"
	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
	"github.com/CedoySch/PhysicsLT2.2/internal/metrics"
)

// maxBodyBytes bounds the trajectory request body.
const maxBodyBytes = 4096

// fieldText is a form field sent either as a JSON string or a bare JSON number.
type fieldText string

func (f *fieldText) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = fieldText(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	*f = fieldText(data)
	return nil
}

type trajectoryRequest struct {
	H0    fieldText `json:"h0"`
	V0    fieldText `json:"v0"`
	Angle fieldText `json:"angle"`
}

type seriesPayload struct {
	Label string    `json:"label"`
	Color string    `json:"color"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
}

type figurePayload struct {
	Kind    string          `json:"kind"`
	Caption string          `json:"caption"`
	XLabel  string          `json:"x_label"`
	YLabel  string          `json:"y_label"`
	Series  []seriesPayload `json:"series"`
}

type trajectoryResponse struct {
	Params      kinematics.LaunchParameters `json:"params"`
	Solution    kinematics.FlightSolution   `json:"solution"`
	SampleCount int                         `json:"sample_count"`
	Figures     []figurePayload             `json:"figures"`
	Samples     []kinematics.Sample         `json:"samples,omitempty"`
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func figurePayloads(tr *kinematics.Trajectory) []figurePayload {
	figs := chart.Figures(tr)
	out := make([]figurePayload, len(figs))
	for i, fig := range figs {
		series := make([]seriesPayload, len(fig.Series))
		for j, s := range fig.Series {
			series[j] = seriesPayload{Label: s.Label, Color: hexColor(s.Color), X: s.X, Y: s.Y}
		}
		out[i] = figurePayload{
			Kind:    string(fig.Kind),
			Caption: fig.Kind.Caption(),
			XLabel:  fig.XLabel,
			YLabel:  fig.YLabel,
			Series:  series,
		}
	}
	return out
}

// trajectoryHandler computes a launch and returns the three plot series.
// POST /api/v1/trajectory {"h0":"0","v0":"50","angle":"45"}  [?samples=true]
func trajectoryHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withSamples := false
		if v := r.URL.Query().Get("samples"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid samples parameter, must be a boolean"})
				return
			}
			withSamples = b
		}

		var req trajectoryRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
			return
		}

		start := time.Now()
		p, err := form.Parse(form.Input{H0: string(req.H0), V0: string(req.V0), Angle: string(req.Angle)})
		if err != nil {
			metrics.RecordComputation(dashboard.OutcomeParse, 0)
			writePlotError(w, logger, err)
			return
		}
		tr, err := kinematics.Compute(p)
		if err != nil {
			metrics.RecordComputation(dashboard.ErrorKind(err), time.Since(start))
			writePlotError(w, logger, err)
			return
		}
		metrics.RecordComputation(dashboard.OutcomeOK, time.Since(start))
		metrics.ObserveFlightTime(tr.Solution().TFlight)

		resp := trajectoryResponse{
			Params:      p,
			Solution:    tr.Solution(),
			SampleCount: tr.Len(),
			Figures:     figurePayloads(tr),
		}
		if withSamples {
			resp.Samples = tr.Samples()
		}
		respond(w, logger, http.StatusOK, resp)
	}
}

// chartHandler renders one chart image for the launch in the query string.
// GET /api/v1/charts/{kind}?h0=0&v0=50&angle=45&format=png
func chartHandler(logger *slog.Logger, renderer *chart.Renderer, rc *cache.RenderCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := chart.ParseKind(r.PathValue("kind"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}

		q := r.URL.Query()
		format, err := chart.ParseFormat(q.Get("format"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		p, err := form.Parse(form.Input{
			H0:    q.Get(form.FieldHeight),
			V0:    q.Get(form.FieldSpeed),
			Angle: q.Get(form.FieldAngle),
		})
		if err != nil {
			metrics.RecordComputation(dashboard.OutcomeParse, 0)
			writePlotError(w, logger, err)
			return
		}

		key := cache.Key{Params: p, Kind: kind, Format: format}
		data, hit, err := rc.GetOrRender(key, func() ([]byte, error) {
			start := time.Now()
			tr, err := kinematics.Compute(p)
			if err != nil {
				metrics.RecordComputation(dashboard.ErrorKind(err), time.Since(start))
				return nil, err
			}
			fig, err := chart.FigureFor(kind, tr)
			if err != nil {
				return nil, err
			}
			data, err := renderer.Encode(fig, format)
			if err != nil {
				metrics.RecordComputation(dashboard.OutcomeRender, time.Since(start))
				return nil, &dashboard.RenderError{Kind: kind, Err: err}
			}
			metrics.RecordComputation(dashboard.OutcomeOK, time.Since(start))
			return data, nil
		})
		if err != nil {
			writePlotError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Cache-Control", "public, max-age=600")
		if hit {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// cacheStatsHandler reports render cache statistics.
// GET /api/v1/cache/stats
func cacheStatsHandler(rc *cache.RenderCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rc.Stats())
	}
}

// writePlotError maps a plot error to its status code and JSON body.
func writePlotError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := dashboard.ErrorKind(err)
	title, text := dashboard.Message(err)
	body := map[string]string{
		"error": text,
		"kind":  kind,
		"title": title,
	}

	var pe *form.ParseError
	var nse *kinematics.NoSolutionError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &pe):
		status = http.StatusBadRequest
		body["field"] = pe.Field
	case errors.As(err, &nse):
		status = http.StatusUnprocessableEntity
		body["reason"] = string(nse.Reason)
	default:
		logger.Error("plot request failed", "component", "api", "error", err)
	}
	writeJSON(w, status, body)
}

// respond writes v as JSON, or a 500 plot error if v cannot be encoded.
func respond(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		writePlotError(w, logger, err)
	}
}

// writeJSON encodes v before touching w, so a failed encode leaves the
// response unwritten.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
	return nil
}
