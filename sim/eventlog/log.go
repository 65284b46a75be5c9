package eventlog

import (
	"fmt"
	"strconv"
)

// Log holds the message, transmission and failure streams of one run.
// Every appended row is checked against its schema and rejected on mismatch.
type Log struct {
	events        []EventRecord
	transmissions []TransmissionRecord
	failures      []FailureRecord
}

// New creates an empty log.
func New() *Log {
	return &Log{
		events:        make([]EventRecord, 0),
		transmissions: make([]TransmissionRecord, 0),
		failures:      make([]FailureRecord, 0),
	}
}

// AppendEvent validates and stores a message/event row.
func (l *Log) AppendEvent(r Record) error {
	if err := CheckSchema(r, EventColumns); err != nil {
		return fmt.Errorf("event record: %w", err)
	}
	ev, err := decodeEvent(r)
	if err != nil {
		return fmt.Errorf("event record: %w", err)
	}
	l.events = append(l.events, ev)
	return nil
}

// AppendTransmission validates and stores a LINK row.
func (l *Log) AppendTransmission(r Record) error {
	if err := CheckSchema(r, TransmissionColumns); err != nil {
		return fmt.Errorf("transmission record: %w", err)
	}
	tr, err := decodeTransmission(r)
	if err != nil {
		return fmt.Errorf("transmission record: %w", err)
	}
	l.transmissions = append(l.transmissions, tr)
	return nil
}

// AppendFailure stores a node failure note.
func (l *Log) AppendFailure(f FailureRecord) {
	l.failures = append(l.failures, f)
}

// Events returns the message/event rows in append order.
func (l *Log) Events() []EventRecord { return l.events }

// Transmissions returns the LINK rows in append order.
func (l *Log) Transmissions() []TransmissionRecord { return l.transmissions }

// Failures returns the node failure notes in append order.
func (l *Log) Failures() []FailureRecord { return l.failures }

// EventsOfType filters the event stream by type (COMP or SINK).
func (l *Log) EventsOfType(typ string) []EventRecord {
	var out []EventRecord
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func decodeEvent(r Record) (EventRecord, error) {
	d := decoder{r: r}
	ev := EventRecord{
		ID:            d.i64("id"),
		Type:          d.str("type"),
		App:           d.str("app"),
		Module:        d.str("module"),
		Message:       d.str("message"),
		DESSrc:        int(d.i64("DES_src")),
		DESDst:        int(d.i64("DES_dst")),
		TopoSrc:       d.i64("TOPO_src"),
		TopoDst:       d.i64("TOPO_dst"),
		ModuleSrc:     d.str("module_src"),
		Service:       d.f64("service"),
		TimeIn:        d.f64("time_in"),
		TimeOut:       d.f64("time_out"),
		TimeEmit:      d.f64("time_emit"),
		TimeReception: d.f64("time_reception"),
	}
	if d.err != nil {
		return EventRecord{}, d.err
	}
	if ev.Type != TypeComputation && ev.Type != TypeSink {
		return EventRecord{}, fmt.Errorf("%w: type must be %s or %s, got %q", ErrSchema, TypeComputation, TypeSink, ev.Type)
	}
	return ev, nil
}

func decodeTransmission(r Record) (TransmissionRecord, error) {
	d := decoder{r: r}
	tr := TransmissionRecord{
		ID:      d.i64("id"),
		Src:     d.i64("src"),
		Dst:     d.i64("dst"),
		App:     d.str("app"),
		Latency: d.f64("latency"),
		Message: d.str("message"),
		CTime:   d.f64("ctime"),
		Size:    d.f64("size"),
		Buffer:  int(d.i64("buffer")),
	}
	if d.err != nil {
		return TransmissionRecord{}, d.err
	}
	if typ := d.str("type"); typ != TypeLink {
		return TransmissionRecord{}, fmt.Errorf("%w: type must be %s, got %q", ErrSchema, TypeLink, typ)
	}
	return tr, nil
}

// decoder reads typed values out of a record, keeping the first error.
// Values may be native numbers (records built in memory) or strings (records read from CSV).
type decoder struct {
	r   Record
	err error
}

func (d *decoder) fail(key string, v any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: field %q has unusable value %v (%T)", ErrSchema, key, v, v)
	}
}

func (d *decoder) str(key string) string {
	switch v := d.r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (d *decoder) i64(key string) int64 {
	switch v := d.r[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			d.fail(key, v)
		}
		return n
	default:
		d.fail(key, v)
		return 0
	}
}

func (d *decoder) f64(key string) float64 {
	switch v := d.r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			d.fail(key, v)
		}
		return f
	default:
		d.fail(key, v)
		return 0
	}
}
