// Package collapsed reads folded stacks, the text format produced by
// stackcollapse scripts: one "root;caller;leaf value" line per stack.
package collapsed

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/grafana/calltree/pkg/profile"
)

// Options controls how folded stacks become samples.
type Options struct {
	// Interval is the time between two consecutive samples, in milliseconds.
	Interval        float64
	DefaultCategory int32
	ThreadName      string
}

type parser struct {
	thread *profile.Thread
	stacks *profile.StackIndex
	frames map[string]int32
}

func (p *parser) frame(name []byte) int32 {
	if f, ok := p.frames[string(name)]; ok {
		return f
	}
	t := p.thread
	fn := t.Funcs.AppendFunc(profile.Func{
		Name:       t.Strings.Intern(string(name)),
		Resource:   profile.Null,
		FileName:   profile.Null,
		LineNumber: profile.Null,
	})
	f := t.Frames.Append(fn)
	p.frames[string(name)] = f
	return f
}

// Parse reads folded stacks from r. Lines without a trailing numeric value
// count as a single sample; frame names may contain spaces. A stack with value n becomes one sample of weight n;
// samples are spaced by the interval in input order.
func Parse(r io.Reader, opts Options) (*profile.Profile, error) {
	if opts.Interval <= 0 {
		opts.Interval = 1
	}
	if opts.ThreadName == "" {
		opts.ThreadName = "collapsed"
	}
	thread := profile.NewThread(opts.ThreadName)
	p := &parser{
		thread: thread,
		stacks: profile.NewStackIndex(&thread.Stacks),
		frames: make(map[string]int32),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, bufio.MaxScanTokenSize), 16*bufio.MaxScanTokenSize)
		for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		value := 1.0
		// A trailing token that is not a number belongs to the last frame
		// name, as in "main;operator new".
		if index := bytes.LastIndexByte(line, ' '); index != -1 {
			if v, err := strconv.ParseFloat(string(line[index+1:]), 64); err == nil {
				value = v
				line = bytes.TrimSpace(line[:index])
			}
		}
		stack := profile.Null
		for _, name := range bytes.Split(line, []byte{';'}) {
			if len(name) == 0 {
				continue
			}
			stack = p.stacks.Stack(stack, p.frame(name))
		}
		if stack == profile.Null {
			continue
		}
		thread.Samples.Append(stack, float64(thread.Samples.Len())*opts.Interval, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading folded stacks")
	}

	profile.ComputeStackCategories(&thread.Stacks, &thread.Frames, opts.DefaultCategory)
	return &profile.Profile{
		Meta: profile.Meta{
			Interval:        opts.Interval,
			Categories:      profile.DefaultCategories,
			DefaultCategory: opts.DefaultCategory,
			Product:         "collapsed",
		},
		Threads: []*profile.Thread{thread},
	}, nil
}
