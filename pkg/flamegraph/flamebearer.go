package flamegraph

import (
	"math"

	"github.com/samber/lo"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/calltree"
	"github.com/grafana/calltree/pkg/profile"
)

// FlamebearerProfile is the flamebearer JSON document understood by the
// pyroscope flame graph UI.
type FlamebearerProfile struct {
	Version     uint                  `json:"version"`
	Flamebearer Flamebearer           `json:"flamebearer"`
	Metadata    FlamebearerMetadataV1 `json:"metadata"`
}

type Flamebearer struct {
	Names    []string `json:"names"`
	Levels   [][]int  `json:"levels"`
	NumTicks int      `json:"numTicks"`
	MaxSelf  int      `json:"maxSelf"`
}

type FlamebearerMetadataV1 struct {
	Format string `json:"format"`
	Name   string `json:"name,omitempty"`
	Units  string `json:"units"`
}

func units(weightType profile.WeightType) string {
	switch weightType {
	case profile.WeightTypeBytes:
		return "bytes"
	case profile.WeightTypeTracingMs:
		return "milliseconds"
	}
	return "samples"
}

// ToFlamebearer exports the layout. Level 0 holds a synthetic "total"
// node; every other level holds the boxes of one row as groups of four
// values: x offset (delta encoded against the end of the previous box),
// total, self and the index into names. Totals and self values are
// absolute: flamebearer widths cannot be negative.
func ToFlamebearer(thread *profile.Thread, table *callnode.Table, timing Timing, timings *calltree.NonInvertedTimings) *FlamebearerProfile {
	numTicks := int64(math.Round(timings.RootTotalSummary))
	names := []string{"total"}
	nameIndex := map[string]int64{"total": 0}
	levels := [][]int64{{0, numTicks, 0, 0}}
	var maxSelf int64

	for _, row := range timing {
		if row.Len() == 0 {
			break
		}
		level := make([]int64, 0, 4*row.Len())
		for i, node := range row.CallNode {
			name := thread.FuncName(table.Func[node])
			idx, ok := nameIndex[name]
			if !ok {
				idx = int64(len(names))
				nameIndex[name] = idx
				names = append(names, name)
			}
			self := int64(math.Round(math.Abs(timings.Self[node])))
			maxSelf = max(maxSelf, self)
			level = append(level,
				int64(math.Round(row.Start[i]*float64(numTicks))),
				int64(math.Round(math.Abs(timings.Total[node]))),
				self,
				idx,
			)
		}
		levels = append(levels, level)
	}

	// delta encode xoffsets
	for _, l := range levels {
		prev := int64(0)
		for i := 0; i < len(l); i += 4 {
			l[i] -= prev
			prev += l[i] + l[i+1]
		}
	}

	return &FlamebearerProfile{
		Version: 1,
		Flamebearer: Flamebearer{
			Names: names,
			Levels: lo.Map(levels, func(l []int64, _ int) []int {
				return lo.Map(l, func(v int64, _ int) int { return int(v) })
			}),
			NumTicks: int(numTicks),
			MaxSelf:  int(maxSelf),
		},
		Metadata: FlamebearerMetadataV1{
			Format: "single",
			Name:   thread.Name,
			Units:  units(thread.Samples.WeightType),
		},
	}
}
