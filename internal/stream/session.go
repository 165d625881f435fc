// Package stream implements the interactive plotting session over a websocket.
//
// A session mirrors the desktop window: the client sends the three form
// fields, the server validates, computes and renders, then replies with the
// three charts or an error. Messages are handled one at a time on the
// connection's read loop, so plot actions never overlap within a session.
//
// Message format:
//
//	-> {"type":"plot","seq":1,"h0":"0","v0":"50","angle":"45"}
//	<- {"type":"plot_result","seq":1,"flight_time":7.208,"charts":{"trajectory":"data:image/png;base64,..."}}
//	<- {"type":"error","seq":1,"kind":"parse","title":"Input","message":"Enter valid numeric values"}
//	-> {"type":"last","seq":2}
//	<- {"type":"plot_result","seq":2,...}  (the session's latest successful plot)
//
// The first message on every connection is {"type":"hello","session_id":"..."}.
package stream

import (
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/dashboard"
	"github.com/CedoySch/PhysicsLT2.2/internal/form"
	"github.com/CedoySch/PhysicsLT2.2/internal/httputil"
	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
	"github.com/CedoySch/PhysicsLT2.2/internal/metrics"
)

// Config holds session configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent sessions per IP (default: 4).
	MaxTotal           int           // Max concurrent sessions overall (default: 1000).
	PingInterval       time.Duration // Keep-alive ping interval (default: 30s).
	WriteTimeout       time.Duration // Per-message write deadline (default: 10s).
	ReadLimit          int64         // Max inbound message size in bytes (default: 4096).
	TrustProxy         bool          // Use X-Forwarded-For / X-Real-IP for the limiter key.
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentPerIP <= 0 {
		c.MaxConcurrentPerIP = 4
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = 1000
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 4096
	}
	return c
}

// Handler manages websocket sessions.
type Handler struct {
	renderer *chart.Renderer
	config   Config
	limiter  *sessionLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new session handler.
func NewHandler(renderer *chart.Renderer, config Config, logger *slog.Logger) *Handler {
	config = config.withDefaults()
	return &Handler{
		renderer: renderer,
		config:   config,
		limiter:  newSessionLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16384,
		},
		logger: logger,
	}
}

// HandleSession upgrades the request and serves plot actions until the
// client disconnects.
// GET /api/v1/session
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	leave, err := h.limiter.admit(ip)
	if err != nil {
		metrics.IncSessionErrors(limitReason(err))
		perIP, total := h.limiter.active(ip)
		h.logger.Warn("session refused",
			"remote_ip", ip,
			"reason", limitReason(err),
			"ip_sessions", perIP,
			"total_sessions", total,
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	defer leave()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		metrics.IncSessionErrors("upgrade")
		h.logger.Debug("session upgrade failed", "remote_ip", ip, "error", err)
		return
	}

	s := &session{
		id:     uuid.New(),
		conn:   conn,
		config: h.config,
		ip:     ip,
		logger: h.logger,
		frames: make(map[chart.Kind]image.Image, len(chart.Kinds)),
	}
	surfaces := make(map[chart.Kind]dashboard.Surface, len(chart.Kinds))
	for _, k := range chart.Kinds {
		surfaces[k] = s.surface(k)
	}
	s.dash, err = dashboard.New(h.renderer, surfaces, h.logger)
	if err != nil {
		h.logger.Error("session dashboard setup failed", "error", err)
		conn.Close()
		return
	}

	metrics.IncSessionConnections("connect")
	metrics.IncSessionsActive()
	startTime := time.Now()
	h.logger.Info("session connected",
		"session_id", s.id.String(),
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	defer func() {
		conn.Close()
		metrics.IncSessionConnections("disconnect")
		metrics.DecSessionsActive()
		h.logger.Info("session disconnected",
			"session_id", s.id.String(),
			"remote_ip", ip,
			"actions", s.actions,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	s.run()
}

// session is one connected client with its own set of chart surfaces.
type session struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config Config
	ip     string
	logger *slog.Logger
	dash   *dashboard.Dashboard

	// frames is written by the dashboard surfaces and read after a
	// successful plot; both happen on the read loop.
	frames  map[chart.Kind]image.Image
	actions int
}

func (s *session) surface(k chart.Kind) dashboard.Surface {
	return dashboard.SurfaceFunc(func(img image.Image) {
		s.frames[k] = img
	})
}

func (s *session) run() {
	pongWait := 2 * s.config.PingInterval
	s.conn.SetReadLimit(s.config.ReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.keepalive(done)

	if err := s.send(helloMessage{
		Type:        typeHello,
		SessionID:   s.id.String(),
		SampleCount: kinematics.SampleCount,
	}); err != nil {
		s.logger.Warn("session send error (hello)", "session_id", s.id.String(), "error", err)
		return
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				metrics.IncSessionErrors("read_error")
				s.logger.Debug("session read error", "session_id", s.id.String(), "error", err)
			}
			return
		}
		metrics.IncSessionMessages("in")
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := s.handle(data); err != nil {
			metrics.IncSessionErrors("send_error")
			s.logger.Warn("session send error", "session_id", s.id.String(), "error", err)
			return
		}
	}
}

// handle processes one inbound message. Only write failures are returned;
// plot errors are reported to the client and the session continues.
func (s *session) handle(data []byte) error {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return s.send(errorMessage{
			Type:    typeError,
			Kind:    errBadRequest,
			Title:   "Request",
			Message: "message is not valid JSON",
		})
	}
	switch req.Type {
	case typePlot:
	case typeLast:
		return s.resendLast(req.Seq)
	default:
		return s.send(errorMessage{
			Type:    typeError,
			Seq:     req.Seq,
			Kind:    errBadRequest,
			Title:   "Request",
			Message: "unknown message type " + strconv.Quote(req.Type),
		})
	}

	s.actions++
	res, err := s.dash.Plot(form.Input{H0: req.H0, V0: req.V0, Angle: req.Angle})
	if err != nil {
		title, text := dashboard.Message(err)
		return s.send(errorMessage{
			Type:    typeError,
			Seq:     req.Seq,
			Kind:    dashboard.ErrorKind(err),
			Title:   title,
			Message: text,
		})
	}

	return s.sendResult(req.Seq, res.Trajectory, s.frames)
}

// resendLast replays the latest successful plot of this session.
func (s *session) resendLast(seq int64) error {
	last := s.dash.Last()
	if last == nil {
		return s.send(errorMessage{
			Type:    typeError,
			Seq:     seq,
			Kind:    errBadRequest,
			Title:   "Request",
			Message: "nothing has been plotted yet",
		})
	}
	return s.sendResult(seq, last.Trajectory, last.Images)
}

func (s *session) sendResult(seq int64, tr *kinematics.Trajectory, frames map[chart.Kind]image.Image) error {
	charts, err := encodeFrames(frames)
	if err != nil {
		metrics.IncSessionErrors("encode_error")
		s.logger.Error("session frame encode failed", "session_id", s.id.String(), "error", err)
		title, text := dashboard.Message(&dashboard.RenderError{Err: err})
		return s.send(errorMessage{
			Type:    typeError,
			Seq:     seq,
			Kind:    dashboard.OutcomeRender,
			Title:   title,
			Message: text,
		})
	}
	return s.send(summarize(seq, tr, charts))
}

func summarize(seq int64, tr *kinematics.Trajectory, charts map[string]string) plotResultMessage {
	sol := tr.Solution()
	maxHeight := tr.At(0).Y
	for _, y := range tr.Ys() {
		if y > maxHeight {
			maxHeight = y
		}
	}
	return plotResultMessage{
		Type:         typePlotResult,
		Seq:          seq,
		FlightTime:   sol.TFlight,
		Discriminant: sol.Discriminant,
		Range:        tr.At(tr.Len() - 1).X,
		MaxHeight:    maxHeight,
		Charts:       charts,
	}
}

// keepalive pings the client until done is closed. WriteControl is safe to
// call concurrently with the read loop's writes.
func (s *session) keepalive(done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Debug("session ping failed", "session_id", s.id.String(), "error", err)
				}
				return
			}
		}
	}
}
