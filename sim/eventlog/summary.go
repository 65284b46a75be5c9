package eventlog

// MessageStats aggregates the timings of every logged handling of one message name.
type MessageStats struct {
	Count        int
	MeanLatency  float64 // time_reception - time_emit
	MeanWait     float64 // time_in - time_reception
	MeanService  float64 // time_out - time_in
	MeanResponse float64 // time_out - time_reception
}

// Summary aggregates statistics from a Log.
type Summary struct {
	Computations     int
	SinkArrivals     int
	Transmissions    int
	BytesTransmitted float64
	Failures         int
	Messages         map[string]*MessageStats // message name → stats
	NodeUtilization  map[int64]float64        // node → busy time / total time
}

// Summarize computes aggregate statistics from a Log over totalTime.
// Safe for nil or empty logs (returns zero-value fields).
func Summarize(l *Log, totalTime float64) *Summary {
	summary := &Summary{
		Messages:        make(map[string]*MessageStats),
		NodeUtilization: make(map[int64]float64),
	}
	if l == nil {
		return summary
	}

	busy := make(map[int64]float64)
	for _, e := range l.events {
		switch e.Type {
		case TypeComputation:
			summary.Computations++
			busy[e.TopoDst] += e.Service
		case TypeSink:
			summary.SinkArrivals++
		}
		st, ok := summary.Messages[e.Message]
		if !ok {
			st = &MessageStats{}
			summary.Messages[e.Message] = st
		}
		st.Count++
		st.MeanLatency += e.TimeReception - e.TimeEmit
		st.MeanWait += e.TimeIn - e.TimeReception
		st.MeanService += e.TimeOut - e.TimeIn
		st.MeanResponse += e.TimeOut - e.TimeReception
	}
	for _, st := range summary.Messages {
		n := float64(st.Count)
		st.MeanLatency /= n
		st.MeanWait /= n
		st.MeanService /= n
		st.MeanResponse /= n
	}

	for _, t := range l.transmissions {
		summary.Transmissions++
		summary.BytesTransmitted += t.Size
	}
	summary.Failures = len(l.failures)

	if totalTime > 0 {
		for node, b := range busy {
			summary.NodeUtilization[node] = b / totalTime
		}
	}
	return summary
}
