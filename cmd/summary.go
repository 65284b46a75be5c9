package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/fogsim/fogsim/sim/eventlog"
	"github.com/fogsim/fogsim/sim/trace"
)

func printTraceSummary(w io.Writer, ts *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Path Trace Summary ===")
	fmt.Fprintf(w, "Selections           : %d\n", ts.TotalSelections)
	fmt.Fprintf(w, "Unreachable          : %d\n", ts.Unreachable)
	fmt.Fprintf(w, "Rerouted             : %d\n", ts.Rerouted)
	fmt.Fprintf(w, "Lost                 : %d\n", ts.Lost)
	if ts.Delivered > 0 {
		fmt.Fprintf(w, "Delivered            : %d\n", ts.Delivered)
		fmt.Fprintf(w, "Mean hops            : %.3f\n", ts.MeanHops)
		fmt.Fprintf(w, "Mean network queue   : %.3f\n", ts.MeanNetworkQueue)
		fmt.Fprintf(w, "Max network queue    : %.3f\n", ts.MaxNetworkQueue)
	}
}

func printLogSummary(w io.Writer, header *eventlog.RunHeader, sum *eventlog.Summary) {
	fmt.Fprintln(w, "=== Run Summary ===")
	fmt.Fprintf(w, "Run                  : %s\n", header.RunID)
	if header.Scenario != "" {
		fmt.Fprintf(w, "Scenario             : %s\n", header.Scenario)
	}
	fmt.Fprintf(w, "Seed                 : %d\n", header.Seed)
	fmt.Fprintf(w, "Horizon              : %.3f\n", header.Horizon)
	fmt.Fprintf(w, "Computations         : %d\n", sum.Computations)
	fmt.Fprintf(w, "Sink arrivals        : %d\n", sum.SinkArrivals)
	fmt.Fprintf(w, "Transmissions        : %d\n", sum.Transmissions)
	fmt.Fprintf(w, "Bytes transmitted    : %.0f\n", sum.BytesTransmitted)
	fmt.Fprintf(w, "Node failures        : %d\n", sum.Failures)

	names := make([]string, 0, len(sum.Messages))
	for name := range sum.Messages {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		fmt.Fprintln(w, "=== Messages ===")
		fmt.Fprintf(w, "%-16s %8s %10s %10s %10s %10s\n", "message", "count", "latency", "wait", "service", "response")
		for _, name := range names {
			m := sum.Messages[name]
			fmt.Fprintf(w, "%-16s %8d %10.3f %10.3f %10.3f %10.3f\n",
				name, m.Count, m.MeanLatency, m.MeanWait, m.MeanService, m.MeanResponse)
		}
	}

	nodes := make([]int64, 0, len(sum.NodeUtilization))
	for n := range sum.NodeUtilization {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	if len(nodes) > 0 {
		fmt.Fprintln(w, "=== Node Utilization ===")
		for _, n := range nodes {
			fmt.Fprintf(w, "node %-6d %.4f\n", n, sum.NodeUtilization[n])
		}
	}
}
