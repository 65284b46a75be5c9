// Package trace provides path-trace recording for selection policy analysis.
// This package has no dependencies on sim/. It stores pure data types.
package trace

// RouteChoice is one path returned by a selection policy.
type RouteChoice struct {
	Path    []int64 // node ids, source first
	Process int     // destination process
}

// SelectionRecord captures a single selection policy decision.
type SelectionRecord struct {
	MessageID int64
	Message   string
	App       string
	Src       int64 // node the message leaves from
	Clock     float64
	Routes    []RouteChoice // empty when no destination was reachable
	Reason    string
}

// RerouteRecord captures a path repair after the old path broke mid-transit.
type RerouteRecord struct {
	MessageID int64
	Message   string
	From      int64 // node the repair starts from
	Clock     float64
	OldPath   []int64
	NewPath   []int64 // nil when the message was lost
}

// DeliveryRecord captures a message handed to its destination inbox.
type DeliveryRecord struct {
	MessageID      int64
	Message        string
	Path           []int64
	DstProcess     int
	NetworkQueue   float64 // total time spent waiting for links
	NetworkLatency float64 // total time spent crossing links
	Emitted        float64
	Received       float64
}
