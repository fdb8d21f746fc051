package profile

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Thread carries the immutable tables a call tree is derived from.
type Thread struct {
	Name          string
	Stacks        StackTable
	Frames        FrameTable
	Funcs         FuncTable
	Resources     ResourceTable
	NativeSymbols NativeSymbolTable
	Samples       SamplesTable
	Strings       *StringTable
}

func NewThread(name string) *Thread {
	return &Thread{
		Name:    name,
		Strings: NewStringTable(64),
		Samples: SamplesTable{WeightType: WeightTypeSamples},
	}
}

// FuncName returns the name of function fn.
func (t *Thread) FuncName(fn int32) string {
	return t.Strings.Get(t.Funcs.Name[fn])
}

type Meta struct {
	// Interval is the sampling interval in milliseconds.
	Interval        float64
	Categories      []Category
	DefaultCategory int32
	Product         string
}

type Profile struct {
	Meta    Meta
	Threads []*Thread
}

// Validate checks the structural invariants the derivations rely on. All
// violations found are reported together.
func (t *Thread) Validate() error {
	var result error
	columns := func(table string, n int, lens ...int) {
		for _, l := range lens {
			if l != n {
				result = multierror.Append(result, fmt.Errorf("%s: column length %d does not match %d rows", table, l, n))
				return
			}
		}
	}
	s := &t.Stacks
	columns("stack table", s.Len(), len(s.Prefix), len(s.Category), len(s.Subcategory))
	f := &t.Frames
	columns("frame table", f.Len(), len(f.Category), len(f.Subcategory), len(f.InlineDepth), len(f.NativeSymbol), len(f.Address), len(f.Line))
	fn := &t.Funcs
	columns("func table", fn.Len(), len(fn.Resource), len(fn.FileName), len(fn.LineNumber), len(fn.IsJS), len(fn.RelevantForJS))
	columns("resource table", t.Resources.Len(), len(t.Resources.Type))
	smp := &t.Samples
	columns("samples table", smp.Len(), len(smp.Time))
	if smp.Weight != nil {
		columns("samples table weight", smp.Len(), len(smp.Weight))
	}
	if smp.Duration != nil {
		columns("samples table duration", smp.Len(), len(smp.Duration))
	}
	if err := smp.WeightType.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if result != nil {
		return result
	}

	for i := 0; i < s.Len(); i++ {
		if p := s.Prefix[i]; p != Null && (p < 0 || p >= int32(i)) {
			result = multierror.Append(result, fmt.Errorf("stack %d: prefix %d is not smaller than the stack index", i, p))
		}
		if fr := s.Frame[i]; fr < 0 || int(fr) >= f.Len() {
			result = multierror.Append(result, fmt.Errorf("stack %d: frame %d out of range", i, fr))
		}
	}
	for i := 0; i < f.Len(); i++ {
		if fu := f.Func[i]; fu < 0 || int(fu) >= fn.Len() {
			result = multierror.Append(result, fmt.Errorf("frame %d: func %d out of range", i, fu))
		}
	}
	for i := 0; i < fn.Len(); i++ {
		if r := fn.Resource[i]; r != Null && (r < 0 || int(r) >= t.Resources.Len()) {
			result = multierror.Append(result, fmt.Errorf("func %d: resource %d out of range", i, r))
		}
	}
	for i := 0; i < smp.Len(); i++ {
		if st := smp.Stack[i]; st != Null && (st < 0 || int(st) >= s.Len()) {
			result = multierror.Append(result, fmt.Errorf("sample %d: stack %d out of range", i, st))
		}
	}
	return result
}
