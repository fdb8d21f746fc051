package calltree

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/profile"
)

// Badge annotates a node whose frames were inlined by the compiler.
type Badge struct {
	Name    string
	Tooltip string
}

// DisplayData is the formatted view of a call node.
type DisplayData struct {
	Name            string
	Total           string
	TotalWithUnit   string
	Self            string
	SelfWithUnit    string
	TotalPercent    string
	SelfPercent     string
	CategoryName    string
	CategoryColor   string
	SubcategoryName string
	// Origin names where the function comes from: its file (and line) or the
	// library it belongs to.
	Origin    string
	Badge     *Badge
	AriaLabel string
}

func (t *CallTree) DisplayData(node int32) *DisplayData {
	t.check(node)
	if d, ok := t.displayData[node]; ok {
		return d
	}
	data := t.NodeData(node)
	category, subcategory, inlined := t.strategy.category(node)
	d := &DisplayData{
		Name:          data.Name,
		Total:         formatValue(data.Total, t.weightType),
		TotalWithUnit: FormatValueWithUnit(data.Total, t.weightType),
		Self:          formatValue(data.Self, t.weightType),
		SelfWithUnit:  FormatValueWithUnit(data.Self, t.weightType),
		TotalPercent:  FormatPercent(data.TotalRelative),
		SelfPercent:   FormatPercent(data.SelfRelative),
		Origin:        t.origin(data.Func),
		Badge:         t.badge(data.Name, inlined),
	}
	d.CategoryName, d.CategoryColor, d.SubcategoryName = t.category(category, subcategory)
	d.AriaLabel = fmt.Sprintf("%s, running %s (%s), self %s", d.Name, d.TotalWithUnit, d.TotalPercent, d.SelfWithUnit)
	t.displayData[node] = d
	return d
}

func (t *CallTree) category(category, subcategory int32) (name, color, sub string) {
	if category < 0 || int(category) >= len(t.categories) {
		return "Unknown", "grey", ""
	}
	c := t.categories[category]
	if subcategory >= 0 && int(subcategory) < len(c.Subcategories) {
		sub = c.Subcategories[subcategory]
	}
	return c.Name, c.Color, sub
}

func (t *CallTree) origin(fn int32) string {
	funcs := &t.thread.Funcs
	if file := funcs.FileName[fn]; file != profile.Null {
		origin := t.thread.Strings.Get(file)
		if line := funcs.LineNumber[fn]; line != profile.Null {
			origin += ":" + strconv.Itoa(int(line))
		}
		return origin
	}
	if r := funcs.Resource[fn]; r != profile.Null {
		return t.thread.Strings.Get(t.thread.Resources.Name[r])
	}
	return ""
}

func (t *CallTree) badge(name string, inlined int32) *Badge {
	switch {
	case inlined == callnode.DivergentInlining:
		return &Badge{
			Name:    "divergent-inlining",
			Tooltip: fmt.Sprintf("Some calls to %s were inlined, others were not", name),
		}
	case inlined >= 0:
		symbol := t.thread.Strings.Get(t.thread.NativeSymbols.Name[inlined])
		return &Badge{
			Name:    "inlined",
			Tooltip: fmt.Sprintf("Inlined into %s", symbol),
		}
	}
	return nil
}

func isIntegral(v float64) bool { return v == math.Trunc(v) }

func formatValue(v float64, weightType profile.WeightType) string {
	switch weightType {
	case profile.WeightTypeBytes:
		return formatBytes(v)
	case profile.WeightTypeTracingMs:
		return humanize.CommafWithDigits(v, 1)
	}
	if isIntegral(v) {
		return humanize.Comma(int64(v))
	}
	return humanize.CommafWithDigits(v, 1)
}

func FormatValueWithUnit(v float64, weightType profile.WeightType) string {
	switch weightType {
	case profile.WeightTypeBytes:
		return formatBytes(v)
	case profile.WeightTypeTracingMs:
		return formatValue(v, weightType) + "ms"
	}
	if v == 1 {
		return "1 sample"
	}
	return formatValue(v, weightType) + " samples"
}

func formatBytes(v float64) string {
	if v < 0 {
		return "-" + humanize.Bytes(uint64(-v))
	}
	return humanize.Bytes(uint64(v))
}

// FormatPercent formats a fraction of the root total. Small values keep
// one decimal.
func FormatPercent(ratio float64) string {
	pct := ratio * 100
	switch {
	case pct == 0 || math.IsNaN(pct):
		return "0%"
	case math.Abs(pct) >= 10:
		return fmt.Sprintf("%.0f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}
