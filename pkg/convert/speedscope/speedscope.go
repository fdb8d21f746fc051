// Package speedscope converts speedscope JSON files into profiles. Every
// speedscope profile, sampled or evented, becomes one thread.
package speedscope

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	calltreeprofile "github.com/grafana/calltree/pkg/profile"
)

type Options struct {
	DefaultCategory int32
}

// Read decodes a speedscope file from r and converts it.
func Read(r io.Reader, opts Options) (*calltreeprofile.Profile, error) {
	var file speedscopeFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decoding speedscope file")
	}
	if file.Schema != "" && file.Schema != schema {
		return nil, errors.Errorf("unsupported schema %q", file.Schema)
	}
	result := &calltreeprofile.Profile{
		Meta: calltreeprofile.Meta{
			Interval:        1,
			Categories:      calltreeprofile.DefaultCategories,
			DefaultCategory: opts.DefaultCategory,
			Product:         "speedscope",
		},
	}
	for i := range file.Profiles {
		p := &file.Profiles[i]
		thread, err := convert(file.Shared.Frames, p, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "profile %d (%s)", i, p.Name)
		}
		result.Threads = append(result.Threads, thread)
	}
	return result, nil
}

type converter struct {
	shared []frame
	thread *calltreeprofile.Thread
	stacks *calltreeprofile.StackIndex
	frames map[int]int32
}

func (c *converter) frame(i int) (int32, error) {
	if f, ok := c.frames[i]; ok {
		return f, nil
	}
	if i < 0 || i >= len(c.shared) {
		return 0, errors.Errorf("frame %d out of range [0, %d)", i, len(c.shared))
	}
	src := c.shared[i]
	t := c.thread
	fn := calltreeprofile.Func{
		Name:       t.Strings.Intern(src.Name),
		Resource:   calltreeprofile.Null,
		FileName:   calltreeprofile.Null,
		LineNumber: calltreeprofile.Null,
	}
	if src.File != "" {
		fn.FileName = t.Strings.Intern(src.File)
		if src.Line > 0 {
			fn.LineNumber = int32(src.Line)
		}
	}
	f := t.Frames.Append(t.Funcs.AppendFunc(fn))
	c.frames[i] = f
	return f, nil
}

func (c *converter) stack(frames []int) (int32, error) {
	stack := calltreeprofile.Null
	for _, i := range frames {
		f, err := c.frame(i)
		if err != nil {
			return 0, err
		}
		stack = c.stacks.Stack(stack, f)
	}
	return stack, nil
}

func (c *converter) append(stack int32, time, weight float64, timed bool) {
	s := &c.thread.Samples
	s.Append(stack, time, weight)
	if timed {
		s.Duration = append(s.Duration, weight)
	}
}

func convert(shared []frame, p *profile, opts Options) (*calltreeprofile.Thread, error) {
	if err := p.Unit.validate(); err != nil {
		return nil, err
	}
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("%s profile", p.Type)
	}
	thread := calltreeprofile.NewThread(name)
	thread.Samples.WeightType = p.Unit.weightType()
	c := &converter{
		shared: shared,
		thread: thread,
		stacks: calltreeprofile.NewStackIndex(&thread.Stacks),
		frames: make(map[int]int32),
	}

	var err error
	switch p.Type {
	case profileSampled:
		err = c.sampled(p)
	case profileEvented:
		err = c.evented(p)
	default:
		err = errors.Errorf("unknown profile type %q", p.Type)
	}
	if err != nil {
		return nil, err
	}

	calltreeprofile.ComputeStackCategories(&thread.Stacks, &thread.Frames, opts.DefaultCategory)
	if err := thread.Validate(); err != nil {
		return nil, errors.Wrap(err, "converted thread is invalid")
	}
	return thread, nil
}

// sampled appends one sample per speedscope sample. Time units lay samples
// out back to back from the start value; other units space them by one.
func (c *converter) sampled(p *profile) error {
	if p.Weights != nil && len(p.Weights) != len(p.Samples) {
		return errors.Errorf("%d weights for %d samples", len(p.Weights), len(p.Samples))
	}
	timed := p.Unit.millis() != 0
	now := p.Unit.scale(p.StartValue)
	for i, frames := range p.Samples {
		stack, err := c.stack(frames)
		if err != nil {
			return errors.Wrapf(err, "sample %d", i)
		}
		weight := 1.0
		if p.Weights != nil {
			weight = p.Unit.scale(p.Weights[i])
		}
		if !timed {
			now = float64(i)
		}
		c.append(stack, now, weight, timed)
		if timed {
			now += weight
		}
	}
	return nil
}

// evented replays open and close events. The time between two events is
// attributed to the stack that was open in between.
func (c *converter) evented(p *profile) error {
	var (
		open  []int
		stack = calltreeprofile.Null
		last  = p.StartValue
		timed = p.Unit.millis() != 0
	)
	for i, e := range p.Events {
		if e.At < last {
			return errors.Errorf("event %d at %v goes back in time", i, e.At)
		}
		if e.At > last && stack != calltreeprofile.Null {
			c.append(stack, p.Unit.scale(last), p.Unit.scale(e.At-last), timed)
		}
		last = e.At

		switch e.Type {
		case eventOpen:
			open = append(open, e.Frame)
		case eventClose:
			if len(open) == 0 || open[len(open)-1] != e.Frame {
				return errors.Errorf("event %d closes frame %d which is not on top of the stack", i, e.Frame)
			}
			open = open[:len(open)-1]
		default:
			return errors.Errorf("event %d: unknown type %q", i, e.Type)
		}
		var err error
		if stack, err = c.stack(open); err != nil {
			return errors.Wrapf(err, "event %d", i)
		}
	}
	if len(open) != 0 {
		return errors.Errorf("%d frames left open", len(open))
	}
	return nil
}
