// Package eventlog provides the append-only message and transmission logs a
// simulation produces, their file format, and the statistics computed from them.
// This package has no dependencies on sim/. It stores pure data types.
package eventlog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSchema reports a record whose field set differs from its stream's schema.
var ErrSchema = errors.New("record does not match schema")

// Record is one row of a log stream, keyed by column name.
type Record map[string]any

// Event types in the message stream.
const (
	TypeComputation = "COMP"
	TypeSink        = "SINK"
	TypeLink        = "LINK"
)

// EventColumns is the fixed schema of the message/event stream, in file order.
var EventColumns = []string{
	"id", "type", "app", "module", "message",
	"DES_src", "DES_dst", "TOPO_src", "TOPO_dst", "module_src",
	"service", "time_in", "time_out", "time_emit", "time_reception",
}

// TransmissionColumns is the fixed schema of the transmission stream, in file order.
var TransmissionColumns = []string{
	"id", "type", "src", "dst", "app", "latency", "message", "ctime", "size", "buffer",
}

// FailureColumns is the schema of the node failure stream.
var FailureColumns = []string{"node", "processes", "time"}

// EventRecord is the typed form of a message/event row.
type EventRecord struct {
	ID            int64
	Type          string // COMP or SINK
	App           string
	Module        string // module that handled the message
	Message       string
	DESSrc        int // process that emitted the message
	DESDst        int // process that handled it
	TopoSrc       int64
	TopoDst       int64
	ModuleSrc     string
	Service       float64 // service time spent on the node
	TimeIn        float64
	TimeOut       float64
	TimeEmit      float64
	TimeReception float64
}

// Record converts the typed row into its schema form.
func (r EventRecord) Record() Record {
	return Record{
		"id":             r.ID,
		"type":           r.Type,
		"app":            r.App,
		"module":         r.Module,
		"message":        r.Message,
		"DES_src":        r.DESSrc,
		"DES_dst":        r.DESDst,
		"TOPO_src":       r.TopoSrc,
		"TOPO_dst":       r.TopoDst,
		"module_src":     r.ModuleSrc,
		"service":        r.Service,
		"time_in":        r.TimeIn,
		"time_out":       r.TimeOut,
		"time_emit":      r.TimeEmit,
		"time_reception": r.TimeReception,
	}
}

// TransmissionRecord is the typed form of a LINK row.
type TransmissionRecord struct {
	ID      int64
	Src     int64
	Dst     int64
	App     string
	Latency float64
	Message string
	CTime   float64 // time the message entered the link
	Size    float64
	Buffer  int // messages in the network when this one entered the link
}

// Record converts the typed row into its schema form.
func (r TransmissionRecord) Record() Record {
	return Record{
		"id":      r.ID,
		"type":    TypeLink,
		"src":     r.Src,
		"dst":     r.Dst,
		"app":     r.App,
		"latency": r.Latency,
		"message": r.Message,
		"ctime":   r.CTime,
		"size":    r.Size,
		"buffer":  r.Buffer,
	}
}

// FailureRecord notes a node removed by a failure generator.
type FailureRecord struct {
	Node      int64
	Processes int // processes hosted on the node when it failed
	Time      float64
}

// CheckSchema returns an ErrSchema-wrapping error naming every missing and
// unexpected field.
func CheckSchema(r Record, columns []string) error {
	var missing, extra []string
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
		if _, ok := r[c]; !ok {
			missing = append(missing, c)
		}
	}
	for k := range r {
		if !want[k] {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return fmt.Errorf("%w: missing [%s], unexpected [%s]", ErrSchema,
		strings.Join(missing, ", "), strings.Join(extra, ", "))
}
