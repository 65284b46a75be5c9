package eventlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// File names written by Write and read by Load.
const (
	HeaderFile       = "run.yaml"
	EventFile        = "event_log.csv"
	TransmissionFile = "transmission_log.csv"
	FailureFile      = "failure_log.csv"
)

// RunHeader captures run metadata stored next to the CSV streams.
type RunHeader struct {
	RunID     string   `yaml:"run_id"`
	Seed      int64    `yaml:"seed"`
	Horizon   float64  `yaml:"horizon"`
	Scenario  string   `yaml:"scenario,omitempty"`
	CreatedAt string   `yaml:"created_at,omitempty"`
	Counters  Counters `yaml:"counters"`
}

// Counters mirrors the kernel's message accounting at the end of a run.
type Counters struct {
	Emitted   int `yaml:"emitted"`
	Delivered int `yaml:"delivered"`
	Dropped   int `yaml:"dropped"`
	Lost      int `yaml:"lost"`
	Rerouted  int `yaml:"rerouted"`
}

// NewRunHeader creates a header with a fresh run id.
func NewRunHeader(seed int64, horizon float64) *RunHeader {
	return &RunHeader{RunID: uuid.NewString(), Seed: seed, Horizon: horizon}
}

// Write stores the header as YAML and the three streams as CSV files in dir.
func (l *Log) Write(dir string, header *RunHeader) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	headerData, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling run header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, HeaderFile), headerData, 0644); err != nil {
		return fmt.Errorf("writing run header: %w", err)
	}

	events := make([][]string, 0, len(l.events))
	for _, e := range l.events {
		events = append(events, []string{
			i64(e.ID), e.Type, e.App, e.Module, e.Message,
			strconv.Itoa(e.DESSrc), strconv.Itoa(e.DESDst), i64(e.TopoSrc), i64(e.TopoDst), e.ModuleSrc,
			f64(e.Service), f64(e.TimeIn), f64(e.TimeOut), f64(e.TimeEmit), f64(e.TimeReception),
		})
	}
	if err := writeCSV(filepath.Join(dir, EventFile), EventColumns, events); err != nil {
		return err
	}

	links := make([][]string, 0, len(l.transmissions))
	for _, t := range l.transmissions {
		links = append(links, []string{
			i64(t.ID), TypeLink, i64(t.Src), i64(t.Dst), t.App,
			f64(t.Latency), t.Message, f64(t.CTime), f64(t.Size), strconv.Itoa(t.Buffer),
		})
	}
	if err := writeCSV(filepath.Join(dir, TransmissionFile), TransmissionColumns, links); err != nil {
		return err
	}

	failures := make([][]string, 0, len(l.failures))
	for _, f := range l.failures {
		failures = append(failures, []string{i64(f.Node), strconv.Itoa(f.Processes), f64(f.Time)})
	}
	return writeCSV(filepath.Join(dir, FailureFile), FailureColumns, failures)
}

// Load reads a results dir written by Write. Every row is re-validated.
func Load(dir string) (*Log, *RunHeader, error) {
	data, err := os.ReadFile(filepath.Join(dir, HeaderFile))
	if err != nil {
		return nil, nil, fmt.Errorf("reading run header: %w", err)
	}
	var header RunHeader
	if err := yaml.Unmarshal(data, &header); err != nil {
		return nil, nil, fmt.Errorf("parsing run header: %w", err)
	}

	l := New()
	if err := readCSV(filepath.Join(dir, EventFile), l.AppendEvent); err != nil {
		return nil, nil, err
	}
	if err := readCSV(filepath.Join(dir, TransmissionFile), l.AppendTransmission); err != nil {
		return nil, nil, err
	}
	err = readCSV(filepath.Join(dir, FailureFile), func(r Record) error {
		if err := CheckSchema(r, FailureColumns); err != nil {
			return err
		}
		d := decoder{r: r}
		f := FailureRecord{Node: d.i64("node"), Processes: int(d.i64("processes")), Time: d.f64("time")}
		if d.err != nil {
			return d.err
		}
		l.AppendFailure(f)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return l, &header, nil
}

func writeCSV(path string, columns []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readCSV(path string, appendRow func(Record) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	columns, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading CSV header of %s: %w", filepath.Base(path), err)
	}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
		r := make(Record, len(columns))
		for i, c := range columns {
			r[c] = row[i]
		}
		if err := appendRow(r); err != nil {
			return fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
	}
}

func i64(v int64) string   { return strconv.FormatInt(v, 10) }
func f64(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
