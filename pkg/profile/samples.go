package profile

import "fmt"

// WeightType tags the unit of the values carried by a SamplesTable.
type WeightType string

const (
	WeightTypeSamples   WeightType = "samples"
	WeightTypeBytes     WeightType = "bytes"
	WeightTypeTracingMs WeightType = "tracing-ms"
)

func (w WeightType) Validate() error {
	switch w {
	case WeightTypeSamples, WeightTypeBytes, WeightTypeTracingMs:
		return nil
	}
	return fmt.Errorf("unknown weight type %q", string(w))
}

// SamplesTable is the timing source for call tree derivations. It may hold
// CPU samples as well as allocations: the derivation is agnostic to the
// unit. A Null stack means the sample has no usable stack and contributes
// nothing. A nil Weight column means every sample weighs 1.
type SamplesTable struct {
	Stack      []int32
	Time       []float64
	Weight     []float64
	WeightType WeightType
	// Duration is optional; when set it gives the duration of each sample
	// and is used to close the last stack chart boxes.
	Duration []float64
}

func (t *SamplesTable) Len() int { return len(t.Stack) }

// WeightAt returns the weight of sample i, defaulting to 1.
func (t *SamplesTable) WeightAt(i int) float64 {
	if t.Weight == nil {
		return 1
	}
	return t.Weight[i]
}

// Append adds a sample. A nil weight column stays nil as long as every
// appended weight is 1.
func (t *SamplesTable) Append(stack int32, time, weight float64) {
	if t.Weight == nil && weight != 1 {
		t.Weight = make([]float64, len(t.Stack), cap(t.Stack))
		for i := range t.Weight {
			t.Weight[i] = 1
		}
	}
	t.Stack = append(t.Stack, stack)
	t.Time = append(t.Time, time)
	if t.Weight != nil {
		t.Weight = append(t.Weight, weight)
	}
}
