// Package sim provides the discrete-event kernel of the fog simulator.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - event.go: the (due, seq) event queue, Schedule and AdvanceTo
//   - process.go: processes as explicit state machines (Behavior, Wake, Yield)
//   - resource.go: FIFO capacity-bounded contention points for nodes and links
//   - transmission.go: the multi-hop transmission state machine and path repair
//   - deploy.go: deployment indices, process lifecycle and node removal
//
// # Architecture
//
// The sim package defines interfaces and the kernel; implementations live in
// sub-packages:
//   - sim/topology/: the network graph, shortest paths, YAML/JSON descriptions
//   - sim/eventlog/: fixed-schema message and transmission logs, CSV export, statistics
//   - sim/trace/: path decision and delivery trace recording
//   - sim/policy/: selection, placement and population policies
//   - sim/scenario/: YAML scenario files that build a runnable Simulator
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Selection: choose paths from the sending node to live destination processes
//   - Rerouter: repair a path that broke mid-transit
//   - Placement: deploy operator modules onto nodes
//   - Population: deploy sources and sinks
//   - Periodic: re-run a placement or population on an activation schedule
//   - Distribution: inter-arrival delays for sources, monitors and failures
package sim
