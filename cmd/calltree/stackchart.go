package main

import (
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/grafana/calltree/pkg/stackchart"
)

type stackChartParams struct {
	*deriveParams
	MaxDepth int
}

func addStackChartParams(cmd commander) *stackChartParams {
	params := &stackChartParams{deriveParams: &deriveParams{inputParams: addInputParams(cmd), nonInverted: true}}
	cmd.Flag("max-depth", "Drop boxes deeper than this depth. -1 keeps every depth.").Default("-1").IntVar(&params.MaxDepth)
	return params
}

func stackChart(ctx context.Context, params *stackChartParams) error {
	r, _, err := loadDerivation(ctx, params.deriveParams)
	if err != nil {
		return err
	}
	info := r.NonInverted()
	table := info.CallNodeTable()
	timing := stackchart.Compute(&r.Thread.Samples, info, int32(params.MaxDepth), r.Meta.Interval)

	tw := tablewriter.NewWriter(output(ctx))
	tw.SetHeader([]string{"Depth", "Function", "Start (ms)", "End (ms)", "Same widths"})
	for depth, row := range timing {
		for i, node := range row.CallNode {
			tw.Append([]string{
				fmt.Sprint(depth),
				r.Thread.FuncName(table.Func[node]),
				fmt.Sprintf("%.3f", row.Start[i]),
				fmt.Sprintf("%.3f", row.End[i]),
				fmt.Sprintf("%d-%d", row.SameWidthsStart[i], row.SameWidthsEnd[i]),
			})
		}
	}
	tw.Render()
	return nil
}
