package calltree

import (
	"cmp"
	"math"
	"slices"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/profile"
	islices "github.com/grafana/calltree/pkg/slices"
)

// FuncSummary is the weight of one function across the whole tree.
type FuncSummary struct {
	Func int32
	Name string
	Self float64
	// Running counts every sample whose stack contains the function, once
	// per sample even when the function recurses.
	Running float64
}

// SummarizeFuncs aggregates self weights per function, ordered by
// descending absolute self weight, then running weight.
func SummarizeFuncs(thread *profile.Thread, info *callnode.NonInvertedInfo, self Self) []FuncSummary {
	table := info.CallNodeTable()
	funcCount := info.FuncCount()
	selfByFunc := make([]float64, funcCount)
	running := make([]float64, funcCount)
	// seen[f] holds the last leaf node that credited f.
	seen := islices.Fill(make([]int32, funcCount), -1)
	for leaf, s := range self.Self {
		if s == 0 {
			continue
		}
		selfByFunc[table.Func[leaf]] += s
		for n := int32(leaf); n != -1; n = table.Prefix[n] {
			fn := table.Func[n]
			if seen[fn] == int32(leaf) {
				continue
			}
			seen[fn] = int32(leaf)
			running[fn] += s
		}
	}
	var result []FuncSummary
	for fn := 0; fn < funcCount; fn++ {
		if running[fn] == 0 {
			continue
		}
		result = append(result, FuncSummary{
			Func:    int32(fn),
			Name:    thread.FuncName(int32(fn)),
			Self:    selfByFunc[fn],
			Running: running[fn],
		})
	}
	slices.SortStableFunc(result, func(a, b FuncSummary) int {
		if c := cmp.Compare(math.Abs(b.Self), math.Abs(a.Self)); c != 0 {
			return c
		}
		return cmp.Compare(math.Abs(b.Running), math.Abs(a.Running))
	})
	return result
}
