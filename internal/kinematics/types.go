package kinematics

// Gravity is the fixed gravitational acceleration in m/s².
const Gravity = 9.81

// SampleCount is the number of time points in every Trajectory.
const SampleCount = 500

// LaunchParameters holds the initial conditions of a single launch.
type LaunchParameters struct {
	H0    float64 `json:"h0"`    // initial height, meters
	V0    float64 `json:"v0"`    // initial speed, m/s
	Angle float64 `json:"angle"` // launch angle, degrees above horizontal
}

// FlightSolution is the result of solving the height equation for the landing time.
type FlightSolution struct {
	TFlight      float64 `json:"flight_time"`  // seconds
	Discriminant float64 `json:"discriminant"` // b² − 4ac of the height quadratic
	V0X          float64 `json:"v0x"`          // m/s
	V0Y          float64 `json:"v0y"`          // m/s
}

// Sample is the projectile state at a single time point.
type Sample struct {
	T     float64 `json:"t"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	Speed float64 `json:"speed"`
}
