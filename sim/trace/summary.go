package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalSelections  int
	Unreachable      int // selections that returned no route
	Rerouted         int
	Lost             int
	Delivered        int
	MeanHops         float64 // over delivered messages
	MeanNetworkQueue float64 // over delivered messages
	MaxNetworkQueue  float64
	ProcessLoad      map[int]int // destination process → deliveries
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ProcessLoad: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalSelections = len(st.Selections)
	for _, s := range st.Selections {
		if len(s.Routes) == 0 {
			summary.Unreachable++
		}
	}
	for _, r := range st.Reroutes {
		if r.NewPath == nil {
			summary.Lost++
		} else {
			summary.Rerouted++
		}
	}

	if len(st.Deliveries) > 0 {
		totalHops, totalQueue := 0, 0.0
		for _, d := range st.Deliveries {
			summary.ProcessLoad[d.DstProcess]++
			totalHops += len(d.Path) - 1
			totalQueue += d.NetworkQueue
			if d.NetworkQueue > summary.MaxNetworkQueue {
				summary.MaxNetworkQueue = d.NetworkQueue
			}
		}
		summary.Delivered = len(st.Deliveries)
		summary.MeanHops = float64(totalHops) / float64(summary.Delivered)
		summary.MeanNetworkQueue = totalQueue / float64(summary.Delivered)
	}

	return summary
}
