package speedscope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calltreeprofile "github.com/grafana/calltree/pkg/profile"
)

const frames = `"shared": {"frames": [
	{"name": "a", "file": "a.go", "line": 3},
	{"name": "b"},
	{"name": "c"},
	{"name": "d"}
]}`

func stackNames(thread *calltreeprofile.Thread, stack int32) string {
	var names []string
	for s := stack; s != calltreeprofile.Null; s = thread.Stacks.Prefix[s] {
		names = append([]string{thread.FuncName(thread.Frames.Func[thread.Stacks.Frame[s]])}, names...)
	}
	return strings.Join(names, ";")
}

func sampleStacks(thread *calltreeprofile.Thread) []string {
	var stacks []string
	for _, s := range thread.Samples.Stack {
		stacks = append(stacks, stackNames(thread, s))
	}
	return stacks
}

func TestRead_Evented(t *testing.T) {
	p, err := Read(strings.NewReader(`{
		"$schema": "https://www.speedscope.app/file-format-schema.json",
		`+frames+`,
		"profiles": [{
			"type": "evented", "name": "simple.txt", "unit": "milliseconds",
			"startValue": 0, "endValue": 14,
			"events": [
				{"type": "O", "at": 0, "frame": 0},
				{"type": "O", "at": 0, "frame": 1},
				{"type": "O", "at": 0, "frame": 2},
				{"type": "C", "at": 5, "frame": 2},
				{"type": "O", "at": 5, "frame": 3},
				{"type": "C", "at": 9, "frame": 3},
				{"type": "C", "at": 14, "frame": 1},
				{"type": "C", "at": 14, "frame": 0}
			]
		}]
	}`), Options{})
	require.NoError(t, err)
	require.Len(t, p.Threads, 1)
	thread := p.Threads[0]
	assert.Equal(t, "simple.txt", thread.Name)
	assert.Equal(t, calltreeprofile.WeightTypeTracingMs, thread.Samples.WeightType)
	assert.Equal(t, []string{"a;b;c", "a;b;d", "a;b"}, sampleStacks(thread))
	assert.Equal(t, []float64{0, 5, 9}, thread.Samples.Time)
	assert.Equal(t, []float64{5, 4, 5}, thread.Samples.Weight)
	assert.Equal(t, []float64{5, 4, 5}, thread.Samples.Duration)

	a := thread.Frames.Func[thread.Stacks.Frame[0]]
	assert.Equal(t, "a.go", thread.Strings.Get(thread.Funcs.FileName[a]))
	assert.Equal(t, int32(3), thread.Funcs.LineNumber[a])
}

func TestRead_Sampled(t *testing.T) {
	p, err := Read(strings.NewReader(`{
		`+frames+`,
		"profiles": [{
			"type": "sampled", "name": "one", "unit": "none",
			"samples": [[0, 1], [0, 1, 2], [0]],
			"weights": [1, 2, 1]
		}, {
			"type": "sampled", "unit": "seconds",
			"startValue": 1,
			"samples": [[0, 3], [0]],
			"weights": [0.5, 0.25]
		}, {
			"type": "sampled", "name": "alloc", "unit": "bytes",
			"samples": [[0, 1]],
			"weights": [4096]
		}]
	}`), Options{})
	require.NoError(t, err)
	require.Len(t, p.Threads, 3)

	one := p.Threads[0]
	assert.Equal(t, calltreeprofile.WeightTypeSamples, one.Samples.WeightType)
	assert.Equal(t, []string{"a;b", "a;b;c", "a"}, sampleStacks(one))
	assert.Equal(t, []float64{1, 2, 1}, one.Samples.Weight)
	assert.Equal(t, []float64{0, 1, 2}, one.Samples.Time)
	assert.Nil(t, one.Samples.Duration)

	timed := p.Threads[1]
	assert.Equal(t, "sampled profile", timed.Name)
	assert.Equal(t, calltreeprofile.WeightTypeTracingMs, timed.Samples.WeightType)
	assert.Equal(t, []float64{1000, 1500}, timed.Samples.Time)
	assert.Equal(t, []float64{500, 250}, timed.Samples.Weight)

	assert.Equal(t, calltreeprofile.WeightTypeBytes, p.Threads[2].Samples.WeightType)
}

func TestRead_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name     string
		profile  string
		contains string
	}{
		{
			name:     "unbalanced close",
			profile:  `{"type": "evented", "unit": "none", "events": [{"type": "O", "at": 0, "frame": 0}, {"type": "C", "at": 1, "frame": 1}]}`,
			contains: "not on top of the stack",
		},
		{
			name:     "frame left open",
			profile:  `{"type": "evented", "unit": "none", "events": [{"type": "O", "at": 0, "frame": 0}]}`,
			contains: "left open",
		},
		{
			name:     "frame out of range",
			profile:  `{"type": "sampled", "unit": "none", "samples": [[7]]}`,
			contains: "frame 7 out of range",
		},
		{
			name:     "weights mismatch",
			profile:  `{"type": "sampled", "unit": "none", "samples": [[0]], "weights": [1, 2]}`,
			contains: "2 weights for 1 samples",
		},
		{
			name:     "unknown unit",
			profile:  `{"type": "sampled", "unit": "furlongs", "samples": []}`,
			contains: "furlongs",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(`{`+frames+`, "profiles": [`+tc.profile+`]}`), Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}
