// Package pprof converts pprof profiles into profile threads.
package pprof

import (
	"io"
	"path/filepath"
	"strconv"

	gprofile "github.com/google/pprof/profile"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/grafana/calltree/pkg/profile"
)

type Options struct {
	// SampleType selects the pprof value to use as sample weight. Empty
	// selects the profile's default sample type, or the last one.
	SampleType      string
	DefaultCategory int32
}

// Read parses a pprof profile, gzipped or not, and converts it.
func Read(r io.Reader, opts Options) (*profile.Profile, error) {
	p, err := gprofile.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing pprof profile")
	}
	return Convert(p, opts)
}

func sampleTypeIndex(p *gprofile.Profile, name string) (int, error) {
	if len(p.SampleType) == 0 {
		return 0, errors.New("profile has no sample types")
	}
	if name == "" {
		name = p.DefaultSampleType
	}
	if name == "" {
		return len(p.SampleType) - 1, nil
	}
	_, idx, ok := lo.FindIndexOf(p.SampleType, func(st *gprofile.ValueType) bool {
		return st.Type == name
	})
	if !ok {
		return 0, errors.Errorf("sample type %q not found, available: %v", name,
			lo.Map(p.SampleType, func(st *gprofile.ValueType, _ int) string { return st.Type }))
	}
	return idx, nil
}

// intervalMillis is the sampling period in milliseconds, or 1 when the
// period is not a duration.
func intervalMillis(p *gprofile.Profile) float64 {
	if p.PeriodType == nil || p.Period <= 0 {
		return 1
	}
	switch p.PeriodType.Unit {
	case "nanoseconds":
		return float64(p.Period) / 1e6
	case "microseconds":
		return float64(p.Period) / 1e3
	case "milliseconds":
		return float64(p.Period)
	case "seconds":
		return float64(p.Period) * 1e3
	}
	return 1
}

type frameKey struct {
	location uint64
	line     int
}

type converter struct {
	thread    *profile.Thread
	stacks    *profile.StackIndex
	funcs     map[uint64]int32
	frames    map[frameKey]int32
	resources map[uint64]int32
	symbols   map[string]int32
}

func (c *converter) resource(m *gprofile.Mapping) int32 {
	if m == nil || m.File == "" {
		return profile.Null
	}
	if r, ok := c.resources[m.ID]; ok {
		return r
	}
	r := c.thread.Resources.Append(c.thread.Strings.Intern(filepath.Base(m.File)), profile.ResourceTypeLibrary)
	c.resources[m.ID] = r
	return r
}

func (c *converter) fn(f *gprofile.Function, resource int32) int32 {
	if i, ok := c.funcs[f.ID]; ok {
		return i
	}
	t := c.thread
	fileName, lineNumber := profile.Null, profile.Null
	if f.Filename != "" {
		fileName = t.Strings.Intern(f.Filename)
		if f.StartLine > 0 {
			lineNumber = int32(f.StartLine)
		}
	}
	i := t.Funcs.AppendFunc(profile.Func{
		Name:       t.Strings.Intern(f.Name),
		Resource:   resource,
		FileName:   fileName,
		LineNumber: lineNumber,
	})
	c.funcs[f.ID] = i
	return i
}

func (c *converter) symbol(name string) int32 {
	if s, ok := c.symbols[name]; ok {
		return s
	}
	s := c.thread.NativeSymbols.Append(c.thread.Strings.Intern(name))
	c.symbols[name] = s
	return s
}

// addressFunc stands in for the function of an unsymbolized location.
func addressFunc(loc *gprofile.Location) *gprofile.Function {
	return &gprofile.Function{ID: ^loc.ID, Name: "0x" + strconv.FormatUint(loc.Address, 16)}
}

func lineFunc(loc *gprofile.Location, i int) *gprofile.Function {
	if f := loc.Line[i].Function; f != nil {
		return f
	}
	return addressFunc(loc)
}

// appendFrames appends the frames of loc from caller to callee. pprof lists
// the lines of a location innermost first; every line but the last was
// inlined into the function of the last line.
func (c *converter) appendFrames(frames []int32, loc *gprofile.Location) []int32 {
	if len(loc.Line) == 0 {
		// Unsymbolized location: one frame named after the address.
		k := frameKey{location: loc.ID, line: -1}
		f, ok := c.frames[k]
		if !ok {
			fn := c.fn(addressFunc(loc), c.resource(loc.Mapping))
			f = c.thread.Frames.AppendFrame(profile.Frame{
				Func:         fn,
				Category:     profile.Null,
				Subcategory:  profile.Null,
				NativeSymbol: profile.Null,
				Address:      int64(loc.Address),
				Line:         profile.Null,
			})
			c.frames[k] = f
		}
		return append(frames, f)
	}
	outer := len(loc.Line) - 1
	for i := outer; i >= 0; i-- {
		k := frameKey{location: loc.ID, line: i}
		f, ok := c.frames[k]
		if !ok {
			line := loc.Line[i]
			frame := profile.Frame{
				Func:         c.fn(lineFunc(loc, i), c.resource(loc.Mapping)),
				Category:     profile.Null,
				Subcategory:  profile.Null,
				InlineDepth:  int32(outer - i),
				NativeSymbol: profile.Null,
				Address:      int64(loc.Address),
				Line:         int32(line.Line),
			}
			if frame.InlineDepth > 0 {
				frame.NativeSymbol = c.symbol(lineFunc(loc, outer).Name)
			}
			f = c.thread.Frames.AppendFrame(frame)
			c.frames[k] = f
		}
		frames = append(frames, f)
	}
	return frames
}

// Convert turns p into a single-thread profile. Samples keep the order of
// p and are spaced by the sampling period.
func Convert(p *gprofile.Profile, opts Options) (*profile.Profile, error) {
	idx, err := sampleTypeIndex(p, opts.SampleType)
	if err != nil {
		return nil, err
	}
	sampleType := p.SampleType[idx]
	interval := intervalMillis(p)

	thread := profile.NewThread(sampleType.Type)
	if sampleType.Unit == "bytes" {
		thread.Samples.WeightType = profile.WeightTypeBytes
	}
	c := &converter{
		thread:    thread,
		stacks:    profile.NewStackIndex(&thread.Stacks),
		funcs:     make(map[uint64]int32),
		frames:    make(map[frameKey]int32),
		resources: make(map[uint64]int32),
		symbols:   make(map[string]int32),
	}

	var frames []int32
	for i, s := range p.Sample {
		if idx >= len(s.Value) {
			return nil, errors.Errorf("sample %d has %d values, expected at least %d", i, len(s.Value), idx+1)
		}
		value := s.Value[idx]
		if value == 0 {
			continue
		}
		frames = frames[:0]
		for j := len(s.Location) - 1; j >= 0; j-- {
			frames = c.appendFrames(frames, s.Location[j])
		}
		stack := c.stacks.Path(frames)
		thread.Samples.Append(stack, float64(thread.Samples.Len())*interval, float64(value))
	}

	profile.ComputeStackCategories(&thread.Stacks, &thread.Frames, opts.DefaultCategory)
	if err := thread.Validate(); err != nil {
		return nil, errors.Wrap(err, "converted thread is invalid")
	}
	return &profile.Profile{
		Meta: profile.Meta{
			Interval:        interval,
			Categories:      profile.DefaultCategories,
			DefaultCategory: opts.DefaultCategory,
			Product:         "pprof",
		},
		Threads: []*profile.Thread{thread},
	}, nil
}
