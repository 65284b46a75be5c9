package trace

import "testing"

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)

	if summary.TotalSelections != 0 || summary.Delivered != 0 {
		t.Error("expected zero counts for nil trace")
	}
	if summary.ProcessLoad == nil {
		t.Error("expected non-nil process load map")
	}
}

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDeliveries})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalSelections != 0 {
		t.Errorf("expected 0 selections, got %d", summary.TotalSelections)
	}
	if summary.Rerouted != 0 || summary.Lost != 0 {
		t.Error("expected 0 reroutes and losses")
	}
	if summary.MeanHops != 0 || summary.MeanNetworkQueue != 0 {
		t.Error("expected 0 means")
	}
	if len(summary.ProcessLoad) != 0 {
		t.Error("expected empty process load")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with selections, reroutes and deliveries
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDeliveries})
	st.RecordSelection(SelectionRecord{MessageID: 1, Routes: []RouteChoice{{Path: []int64{0, 1}, Process: 5}}})
	st.RecordSelection(SelectionRecord{MessageID: 2})
	st.RecordReroute(RerouteRecord{MessageID: 3, NewPath: []int64{1, 4, 2}})
	st.RecordReroute(RerouteRecord{MessageID: 4})
	st.RecordDelivery(DeliveryRecord{MessageID: 1, Path: []int64{0, 1}, DstProcess: 5, NetworkQueue: 0})
	st.RecordDelivery(DeliveryRecord{MessageID: 3, Path: []int64{0, 1, 4, 2}, DstProcess: 5, NetworkQueue: 4})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and means match
	if summary.TotalSelections != 2 || summary.Unreachable != 1 {
		t.Errorf("expected 2 selections with 1 unreachable, got %d/%d", summary.TotalSelections, summary.Unreachable)
	}
	if summary.Rerouted != 1 || summary.Lost != 1 {
		t.Errorf("expected 1 rerouted and 1 lost, got %d/%d", summary.Rerouted, summary.Lost)
	}
	if summary.MeanHops != 2 {
		t.Errorf("expected mean hops 2, got %v", summary.MeanHops)
	}
	if summary.MeanNetworkQueue != 2 || summary.MaxNetworkQueue != 4 {
		t.Errorf("expected queue mean 2 max 4, got %v/%v", summary.MeanNetworkQueue, summary.MaxNetworkQueue)
	}
	if summary.ProcessLoad[5] != 2 {
		t.Errorf("expected 2 deliveries to process 5, got %d", summary.ProcessLoad[5])
	}
}
