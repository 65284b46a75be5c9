package trace

// TraceLevel controls the verbosity of path tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every path selection and reroute.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelDeliveries additionally captures every message handed to an inbox.
	TraceLevelDeliveries TraceLevel = "deliveries"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:       true,
	TraceLevelDecisions:  true,
	TraceLevelDeliveries: true,
	"":                   true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// Decisions reports whether selection and reroute records are collected.
func (c TraceConfig) Decisions() bool {
	return c.Level == TraceLevelDecisions || c.Level == TraceLevelDeliveries
}

// Deliveries reports whether delivery records are collected.
func (c TraceConfig) Deliveries() bool {
	return c.Level == TraceLevelDeliveries
}

// SimulationTrace collects path decisions and deliveries during a simulation.
type SimulationTrace struct {
	Config     TraceConfig
	Selections []SelectionRecord
	Reroutes   []RerouteRecord
	Deliveries []DeliveryRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Selections: make([]SelectionRecord, 0),
		Reroutes:   make([]RerouteRecord, 0),
		Deliveries: make([]DeliveryRecord, 0),
	}
}

// RecordSelection appends a path selection record.
func (st *SimulationTrace) RecordSelection(record SelectionRecord) {
	st.Selections = append(st.Selections, record)
}

// RecordReroute appends a reroute record.
func (st *SimulationTrace) RecordReroute(record RerouteRecord) {
	st.Reroutes = append(st.Reroutes, record)
}

// RecordDelivery appends a delivery record.
func (st *SimulationTrace) RecordDelivery(record DeliveryRecord) {
	st.Deliveries = append(st.Deliveries, record)
}
