package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/grafana/calltree/pkg/flamegraph"
)

type flameGraphParams struct {
	*deriveParams
	Output string
}

func addFlameGraphParams(cmd commander) *flameGraphParams {
	params := &flameGraphParams{deriveParams: &deriveParams{inputParams: addInputParams(cmd), nonInverted: true}}
	cmd.Flag("traced", "Weigh samples by the time until the next sample instead of their weight.").Default("false").BoolVar(&params.Traced)
	cmd.Flag("output", "How to output the result: console or json (flamebearer).").Default("console").EnumVar(&params.Output, "console", "json")
	return params
}

func flameGraph(ctx context.Context, params *flameGraphParams) error {
	r, _, err := loadDerivation(ctx, params.deriveParams)
	if err != nil {
		return err
	}
	table := r.NonInverted().CallNodeTable()
	rows := flamegraph.ComputeRows(table, r.Thread)
	timing := flamegraph.ComputeTiming(rows, table, r.Timings.NonInverted)

	out := output(ctx)
	if params.Output == "json" {
		enc := json.NewEncoder(out)
		return enc.Encode(flamegraph.ToFlamebearer(r.Thread, table, timing, r.Timings.NonInverted))
	}

	tw := tablewriter.NewWriter(out)
	tw.SetHeader([]string{"Depth", "Function", "Start", "End", "Self"})
	for depth, row := range timing {
		for i, node := range row.CallNode {
			tw.Append([]string{
				fmt.Sprint(depth),
				r.Thread.FuncName(table.Func[node]),
				fmt.Sprintf("%.2f%%", row.Start[i]*100),
				fmt.Sprintf("%.2f%%", row.End[i]*100),
				fmt.Sprintf("%.2f%%", row.SelfRelative[i]*100),
			})
		}
	}
	tw.Render()
	return nil
}
