package main

import (
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/calltree"
	"github.com/grafana/calltree/pkg/profile"
	"github.com/grafana/calltree/pkg/slices"
)

type topParams struct {
	*deriveParams
	Limit int
}

func addTopParams(cmd commander) *topParams {
	params := &topParams{deriveParams: &deriveParams{inputParams: addInputParams(cmd), nonInverted: true}}
	cmd.Flag("traced", "Weigh samples by the time until the next sample instead of their weight.").Default("false").BoolVar(&params.Traced)
	cmd.Flag("limit", "Number of functions to list. 0 lists all of them.").Default("20").IntVar(&params.Limit)
	return params
}

// funcCategories is the category of the first call node of every function.
func funcCategories(table *callnode.Table, funcCount int) []int32 {
	result := slices.Fill(make([]int32, funcCount), profile.Null)
	for node, fn := range table.Func {
		if result[fn] == profile.Null {
			result[fn] = table.Category[node]
		}
	}
	return result
}

func top(ctx context.Context, params *topParams) error {
	r, _, err := loadDerivation(ctx, params.deriveParams)
	if err != nil {
		return err
	}
	summary := r.Summary()
	if len(summary) == 0 {
		_, err := fmt.Fprintln(output(ctx), "no samples")
		return err
	}
	if params.Limit > 0 && len(summary) > params.Limit {
		summary = summary[:params.Limit]
	}
	info := r.NonInverted()
	categories := funcCategories(info.CallNodeTable(), info.FuncCount())
	rootTotal := r.Timings.RootTotalSummary()
	weightType := r.Thread.Samples.WeightType
	if r.Traced {
		weightType = profile.WeightTypeTracingMs
	}

	tw := tablewriter.NewWriter(output(ctx))
	tw.SetHeader([]string{"Function", "Self", "Self%", "Running", "Running%", "Category"})
	for _, s := range summary {
		category := "Other"
		clr := plainClr
		if c := categories[s.Func]; c >= 0 && int(c) < len(r.Meta.Categories) {
			category = r.Meta.Categories[c].Name
			clr = categoryClr(r.Meta.Categories[c].Color)
		}
		tw.Append([]string{
			s.Name,
			calltree.FormatValueWithUnit(s.Self, weightType),
			calltree.FormatPercent(s.Self/rootTotal),
			calltree.FormatValueWithUnit(s.Running, weightType),
			calltree.FormatPercent(s.Running/rootTotal),
			clr.Sprint(category),
		})
	}
	tw.Render()
	return nil
}
