// Package profiletest builds small threads for tests from folded stacks.
package profiletest

import (
	"strings"

	"github.com/grafana/calltree/pkg/profile"
)

type stackKey struct {
	prefix int32
	frame  int32
}

type Builder struct {
	thread *profile.Thread
	funcs  map[string]int32
	frames map[string]int32
	stacks map[stackKey]int32
}

func NewBuilder() *Builder {
	return &Builder{
		thread: profile.NewThread("test"),
		funcs:  make(map[string]int32),
		frames: make(map[string]int32),
		stacks: make(map[stackKey]int32),
	}
}

// Frame returns the frame for name, creating a function and a single frame
// for it on first use.
func (b *Builder) Frame(name string) int32 {
	if f, ok := b.frames[name]; ok {
		return f
	}
	t := b.thread
	fn := t.Funcs.AppendFunc(profile.Func{
		Name:       t.Strings.Intern(name),
		Resource:   profile.Null,
		FileName:   profile.Null,
		LineNumber: profile.Null,
	})
	b.funcs[name] = fn
	f := t.Frames.Append(fn)
	b.frames[name] = f
	return f
}

// ExtraFrame adds another frame for an existing (or new) function name and
// returns it. Stacks built with it are distinct from stacks using Frame.
func (b *Builder) ExtraFrame(name string, category, subcategory int32) int32 {
	b.Frame(name)
	return b.thread.Frames.AppendFrame(profile.Frame{
		Func:         b.funcs[name],
		Category:     category,
		Subcategory:  subcategory,
		NativeSymbol: profile.Null,
		Line:         profile.Null,
	})
}

// SetCategory sets the category of the default frame of name.
func (b *Builder) SetCategory(name string, category, subcategory int32) {
	f := b.Frame(name)
	b.thread.Frames.Category[f] = category
	b.thread.Frames.Subcategory[f] = subcategory
}

// Func returns the function index of name.
func (b *Builder) Func(name string) int32 {
	b.Frame(name)
	return b.funcs[name]
}

// StackOfFrames returns the stack for the given root-to-leaf frames.
func (b *Builder) StackOfFrames(frames ...int32) int32 {
	prefix := profile.Null
	for _, f := range frames {
		k := stackKey{prefix: prefix, frame: f}
		s, ok := b.stacks[k]
		if !ok {
			s = b.thread.Stacks.Append(f, prefix, 0, 0)
			b.stacks[k] = s
		}
		prefix = s
	}
	return prefix
}

// Stack returns the stack for a semicolon separated root-to-leaf path. An
// empty path is the null stack.
func (b *Builder) Stack(path string) int32 {
	if path == "" {
		return profile.Null
	}
	names := strings.Split(path, ";")
	frames := make([]int32, len(names))
	for i, n := range names {
		frames[i] = b.Frame(n)
	}
	return b.StackOfFrames(frames...)
}

// Sample appends a sample at time with the given weight.
func (b *Builder) Sample(path string, time, weight float64) *Builder {
	b.thread.Samples.Append(b.Stack(path), time, weight)
	return b
}

// SampleStack appends a sample referencing an existing stack.
func (b *Builder) SampleStack(stack int32, time, weight float64) *Builder {
	b.thread.Samples.Append(stack, time, weight)
	return b
}

// Thread finalizes stack categories and returns the thread.
func (b *Builder) Thread() *profile.Thread {
	t := b.thread
	profile.ComputeStackCategories(&t.Stacks, &t.Frames, 0)
	return t
}

// NewThread builds a thread with one sample per path, one millisecond apart.
func NewThread(paths ...string) *profile.Thread {
	b := NewBuilder()
	for i, p := range paths {
		b.Sample(p, float64(i), 1)
	}
	return b.Thread()
}
