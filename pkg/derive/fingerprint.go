package derive

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/grafana/calltree/pkg/profile"
)

type fingerprinter struct {
	hash *xxhash.Digest
	b    [8]byte
}

func (f *fingerprinter) int32s(values []int32) {
	binary.LittleEndian.PutUint64(f.b[:], uint64(len(values)))
	f.write(f.b[:])
	for _, v := range values {
		binary.LittleEndian.PutUint32(f.b[:4], uint32(v))
		f.write(f.b[:4])
	}
}

func (f *fingerprinter) float64s(values []float64) {
	binary.LittleEndian.PutUint64(f.b[:], uint64(len(values)))
	f.write(f.b[:])
	for _, v := range values {
		binary.LittleEndian.PutUint64(f.b[:], math.Float64bits(v))
		f.write(f.b[:])
	}
}

// str hashes the string at index i of strings, or a marker for Null.
func (f *fingerprinter) str(strings *profile.StringTable, i int32) {
	if i == profile.Null {
		f.write([]byte{0xff})
		return
	}
	_, _ = f.hash.WriteString(strings.Get(i))
	f.write([]byte{0})
}

func (f *fingerprinter) write(b []byte) {
	if _, err := f.hash.Write(b); err != nil {
		panic("unable to write hash")
	}
}

// Fingerprint hashes the columns of thread that derived call trees depend
// on. Threads with equal fingerprints share derivations.
func Fingerprint(thread *profile.Thread) uint64 {
	f := fingerprinter{hash: xxhash.New()}
	f.int32s(thread.Stacks.Frame)
	f.int32s(thread.Stacks.Prefix)
	f.int32s(thread.Stacks.Category)
	f.int32s(thread.Stacks.Subcategory)
	f.int32s(thread.Frames.Func)
	f.int32s(thread.Frames.InlineDepth)
	f.int32s(thread.Frames.NativeSymbol)
	f.int32s(thread.Samples.Stack)
	f.float64s(thread.Samples.Time)
	f.float64s(thread.Samples.Weight)
	f.float64s(thread.Samples.Duration)
	_, _ = f.hash.WriteString(string(thread.Samples.WeightType))
	f.int32s(thread.Frames.Line)
	// Display data reads names, origins and inlining symbols.
	funcs := &thread.Funcs
	for fn := 0; fn < funcs.Len(); fn++ {
		f.str(thread.Strings, funcs.Name[fn])
		f.str(thread.Strings, funcs.FileName[fn])
	}
	f.int32s(funcs.LineNumber)
	f.int32s(funcs.Resource)
	for r := 0; r < thread.Resources.Len(); r++ {
		f.str(thread.Strings, thread.Resources.Name[r])
	}
	for s := 0; s < thread.NativeSymbols.Len(); s++ {
		f.str(thread.Strings, thread.NativeSymbols.Name[s])
	}
	return f.hash.Sum64()
}
