package stream

// Message types exchanged over a session.
const (
	typeHello      = "hello"
	typePlot       = "plot"
	typeLast       = "last"
	typePlotResult = "plot_result"
	typeError      = "error"
)

// errBadRequest is the error kind for malformed or unknown messages.
const errBadRequest = "bad_request"

// request is an inbound client message.
type request struct {
	Type  string `json:"type"`
	Seq   int64  `json:"seq"`
	H0    string `json:"h0"`
	V0    string `json:"v0"`
	Angle string `json:"angle"`
}

type helloMessage struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	SampleCount int    `json:"sample_count"`
}

type plotResultMessage struct {
	Type         string            `json:"type"`
	Seq          int64             `json:"seq"`
	FlightTime   float64           `json:"flight_time"`
	Discriminant float64           `json:"discriminant"`
	Range        float64           `json:"range"`
	MaxHeight    float64           `json:"max_height"`
	Charts       map[string]string `json:"charts"` // kind → PNG data URL
}

type errorMessage struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
