package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_NilLog(t *testing.T) {
	s := Summarize(nil, 100)

	assert.Equal(t, 0, s.Computations)
	assert.NotNil(t, s.Messages)
	assert.NotNil(t, s.NodeUtilization)
}

func TestSummarize_TimingsAndUtilization(t *testing.T) {
	// GIVEN two computations of m1 on node 1 and one sink arrival
	l := New()
	a := sampleEvent() // wait 1, service 10, latency 4
	b := sampleEvent()
	b.TimeEmit, b.TimeReception, b.TimeIn, b.TimeOut, b.Service = 20, 30, 30, 40, 10
	sink := sampleEvent()
	sink.Type, sink.Message, sink.TopoDst = TypeSink, "m2", 2
	sink.TimeEmit, sink.TimeReception, sink.TimeIn, sink.TimeOut, sink.Service = 15, 18, 18, 18, 0
	for _, e := range []EventRecord{a, b, sink} {
		require.NoError(t, l.AppendEvent(e.Record()))
	}
	require.NoError(t, l.AppendTransmission(TransmissionRecord{ID: 1, Size: 100, App: "app"}.Record()))
	require.NoError(t, l.AppendTransmission(TransmissionRecord{ID: 2, Size: 50, App: "app"}.Record()))

	// WHEN summarized over 100 time units
	s := Summarize(l, 100)

	// THEN counts, means and utilization match the rows
	assert.Equal(t, 2, s.Computations)
	assert.Equal(t, 1, s.SinkArrivals)
	assert.Equal(t, 2, s.Transmissions)
	assert.Equal(t, 150.0, s.BytesTransmitted)
	m1 := s.Messages["m1"]
	require.NotNil(t, m1)
	assert.Equal(t, 2, m1.Count)
	assert.InDelta(t, (4.0+10.0)/2, m1.MeanLatency, 1e-9)
	assert.InDelta(t, (1.0+0.0)/2, m1.MeanWait, 1e-9)
	assert.InDelta(t, 10.0, m1.MeanService, 1e-9)
	assert.InDelta(t, (11.0+10.0)/2, m1.MeanResponse, 1e-9)
	assert.InDelta(t, 0.2, s.NodeUtilization[1], 1e-9)
	assert.InDelta(t, 3.0, s.Messages["m2"].MeanLatency, 1e-9)
}
