// Package derive owns derived call trees: it builds one derivation per
// input thread and options, and shares it with every consumer asking for
// the same combination.
package derive

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/calltree"
	phlarecontext "github.com/grafana/calltree/pkg/context"
	"github.com/grafana/calltree/pkg/profile"
)

type Options struct {
	Inverted bool
	// Traced attributes to every sample the time until the next sample.
	// Threads whose samples are weighted fall back to sample weights.
	Traced bool
}

type key struct {
	fingerprint uint64
	inverted    bool
	traced      bool
}

// Result is a derivation shared between consumers. The call tree fills
// caches while it is queried: hold the lock around queries.
type Result struct {
	sync.Mutex
	Thread  *profile.Thread
	Meta    profile.Meta
	Info    callnode.Info
	Timings calltree.Timings
	Tree    *calltree.CallTree
	// Traced reports whether traced timing was applied.
	Traced bool
}

// NonInverted returns the non-inverted call node info backing r.
func (r *Result) NonInverted() *callnode.NonInvertedInfo {
	if inverted := r.Info.AsInverted(); inverted != nil {
		return inverted.NonInverted()
	}
	return r.Info.(*callnode.NonInvertedInfo)
}

// Summary aggregates the timings of r per function.
func (r *Result) Summary() []calltree.FuncSummary {
	return calltree.SummarizeFuncs(r.Thread, r.NonInverted(), r.Timings.Self())
}

type Cache struct {
	logger  log.Logger
	meta    profile.Meta
	metrics *metrics

	mu      sync.Mutex
	results *lru.Cache[key, *Result]
	infos   *lru.Cache[uint64, *callnode.NonInvertedInfo]
}

// NewCache creates a cache of size derivations. The logger and metrics
// registry are taken from ctx.
func NewCache(ctx context.Context, size int, meta profile.Meta) (*Cache, error) {
	results, err := lru.New[key, *Result](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating derivation cache")
	}
	infos, err := lru.New[uint64, *callnode.NonInvertedInfo](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating call node cache")
	}
	if meta.Categories == nil {
		meta.Categories = profile.DefaultCategories
	}
	return &Cache{
		logger:  phlarecontext.Logger(ctx),
		meta:    meta,
		metrics: newMetrics(phlarecontext.Registry(ctx)),
		results: results,
		infos:   infos,
	}, nil
}

// Get returns the derivation of thread for opts, building it on first
// use. The thread must not be modified afterwards.
func (c *Cache) Get(thread *profile.Thread, opts Options) *Result {
	fingerprint := Fingerprint(thread)
	k := key{fingerprint: fingerprint, inverted: opts.Inverted, traced: opts.Traced}

	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.results.Get(k); ok {
		c.metrics.lookups.WithLabelValues("hit").Inc()
		return r
	}
	c.metrics.lookups.WithLabelValues("miss").Inc()

	r := c.build(fingerprint, thread, opts)
	c.results.Add(k, r)
	return r
}

func (c *Cache) nonInverted(fingerprint uint64, thread *profile.Thread) *callnode.NonInvertedInfo {
	if info, ok := c.infos.Get(fingerprint); ok {
		return info
	}
	start := time.Now()
	info := callnode.New(thread, c.meta.DefaultCategory)
	c.metrics.buildDuration.WithLabelValues("call_node_table").Observe(time.Since(start).Seconds())
	level.Debug(c.logger).Log(
		"msg", "built call node table",
		"thread", thread.Name,
		"stacks", thread.Stacks.Len(),
		"call_nodes", info.Len(),
		"duration", time.Since(start),
	)
	c.infos.Add(fingerprint, info)
	return info
}

func (c *Cache) build(fingerprint uint64, thread *profile.Thread, opts Options) *Result {
	nonInverted := c.nonInverted(fingerprint, thread)
	start := time.Now()

	var info callnode.Info = nonInverted
	if opts.Inverted {
		info = nonInverted.Inverted()
	}
	r := &Result{Thread: thread, Meta: c.meta, Info: info}
	weightType := thread.Samples.WeightType

	if opts.Traced {
		traced, err := calltree.ComputeTracedTimings(&thread.Samples, nonInverted, c.meta.Interval)
		switch {
		case err == nil:
			r.Traced = true
			weightType = profile.WeightTypeTracingMs
			if inverted := info.AsInverted(); inverted != nil {
				r.Timings.Inverted = calltree.ComputeInvertedTimings(inverted, calltree.Self{
					Self:             traced.Self,
					RootTotalSummary: traced.RootTotalSummary,
				})
			} else {
				r.Timings.NonInverted = traced
			}
		case errors.Is(err, calltree.ErrNotApplicable):
			level.Debug(c.logger).Log("msg", "traced timing not applicable, using sample weights", "thread", thread.Name, "err", err)
		default:
			level.Warn(c.logger).Log("msg", "traced timing failed", "thread", thread.Name, "err", err)
		}
	}
	if !r.Traced {
		r.Timings = calltree.ComputeTimings(info, &thread.Samples)
	}

	r.Tree = calltree.New(thread, c.meta.Categories, info, r.Timings, weightType,
		calltree.WithDefaultCategory(c.meta.DefaultCategory))
	c.metrics.buildDuration.WithLabelValues("call_tree").Observe(time.Since(start).Seconds())
	level.Debug(c.logger).Log(
		"msg", "derived call tree",
		"thread", thread.Name,
		"inverted", opts.Inverted,
		"traced", r.Traced,
		"root_total", r.Timings.RootTotalSummary(),
		"duration", time.Since(start),
	)
	return r
}

// Len is the number of cached derivations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results.Len()
}
