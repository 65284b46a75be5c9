package sim

import (
	"fmt"

	"github.com/fogsim/fogsim/sim/trace"
)

// Config groups the run-wide knobs of a simulation.
type Config struct {
	Seed         int64            // master seed for every RNG subsystem
	TraceLevel   trace.TraceLevel // "none" (default), "decisions", "deliveries"
	NodeCapacity int              // processing slots per node (0 means 1)
	LinkCapacity int              // concurrent transmissions per link (0 means 1)
}

// Validate rejects unknown trace levels and negative capacities.
func (c Config) Validate() error {
	if !trace.IsValidTraceLevel(string(c.TraceLevel)) {
		return fmt.Errorf("unknown trace level %q", c.TraceLevel)
	}
	if c.NodeCapacity < 0 || c.LinkCapacity < 0 {
		return fmt.Errorf("capacities must be >= 0, got node=%d link=%d", c.NodeCapacity, c.LinkCapacity)
	}
	return nil
}
