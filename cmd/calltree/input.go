package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/calltree/pkg/config"
	phlarecontext "github.com/grafana/calltree/pkg/context"
	"github.com/grafana/calltree/pkg/convert/collapsed"
	"github.com/grafana/calltree/pkg/convert/pprof"
	"github.com/grafana/calltree/pkg/convert/speedscope"
	"github.com/grafana/calltree/pkg/derive"
	"github.com/grafana/calltree/pkg/profile"
)

type commander interface {
	Flag(name, help string) *kingpin.FlagClause
	Arg(name, help string) *kingpin.ArgClause
}

type inputParams struct {
	File       string
	ConfigFile string
	SampleType string
	Thread     int
}

func addInputParams(cmd commander) *inputParams {
	params := &inputParams{}
	cmd.Arg("file", "Profile to read: pprof (.pb.gz, .pprof), speedscope (.json) or folded stacks (.folded, .collapsed, .txt).").Required().ExistingFileVar(&params.File)
	cmd.Flag("config", "Path to a YAML configuration file.").Default("").StringVar(&params.ConfigFile)
	cmd.Flag("sample-type", "pprof sample type to use, e.g. cpu or alloc_space. Defaults to the profile's default sample type.").Default("").StringVar(&params.SampleType)
	cmd.Flag("thread", "Index of the thread to derive, for inputs with several threads.").Default("0").IntVar(&params.Thread)
	return params
}

type deriveParams struct {
	*inputParams
	Inverted bool
	Traced   bool
	// nonInverted ignores the configured orientation, for views that only
	// exist for the non-inverted tree.
	nonInverted bool
}

func addDeriveParams(cmd commander) *deriveParams {
	params := &deriveParams{inputParams: addInputParams(cmd)}
	cmd.Flag("inverted", "Root the tree at the functions samples were taken in.").Default("false").BoolVar(&params.Inverted)
	cmd.Flag("traced", "Weigh samples by the time until the next sample instead of their weight.").Default("false").BoolVar(&params.Traced)
	return params
}

func (p *deriveParams) options(cfg *config.Config) derive.Options {
	return derive.Options{
		Inverted: !p.nonInverted && (p.Inverted || cfg.Inverted),
		Traced:   p.Traced || cfg.Traced,
	}
}

type format int

const (
	formatPprof format = iota
	formatFolded
	formatSpeedscope
)

func detectFormat(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".folded", ".collapsed", ".txt":
		return formatFolded
	case ".json":
		return formatSpeedscope
	}
	return formatPprof
}

func loadConfig(params *inputParams) (*config.Config, error) {
	cfg, err := config.Load(params.ConfigFile)
	if err != nil {
		return nil, err
	}
	if params.SampleType != "" {
		cfg.SampleType = params.SampleType
	}
	return cfg, nil
}

func readProfile(ctx context.Context, path string, cfg *config.Config) (*profile.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening profile")
	}
	defer f.Close()

	var p *profile.Profile
	switch detectFormat(path) {
	case formatFolded:
		p, err = collapsed.Parse(f, collapsed.Options{
			Interval:        cfg.Interval,
			DefaultCategory: cfg.DefaultCategory,
			ThreadName:      filepath.Base(path),
		})
	case formatSpeedscope:
		p, err = speedscope.Read(f, speedscope.Options{DefaultCategory: cfg.DefaultCategory})
	default:
		p, err = pprof.Read(f, pprof.Options{
			SampleType:      cfg.SampleType,
			DefaultCategory: cfg.DefaultCategory,
		})
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if len(p.Threads) == 0 {
		return nil, errors.Errorf("%s contains no threads", path)
	}
	p.Meta.Categories = cfg.Categories

	level.Debug(phlarecontext.Logger(ctx)).Log(
		"msg", "read profile",
		"file", path,
		"product", p.Meta.Product,
		"threads", len(p.Threads),
	)
	return p, nil
}

// selectThread returns thread i of p.
func selectThread(ctx context.Context, p *profile.Profile, i int) (*profile.Thread, error) {
	if i < 0 || i >= len(p.Threads) {
		return nil, errors.Errorf("thread %d out of range, the profile has %d threads", i, len(p.Threads))
	}
	thread := p.Threads[i]
	level.Debug(phlarecontext.Logger(ctx)).Log(
		"msg", "selected thread",
		"thread", thread.Name,
		"samples", thread.Samples.Len(),
		"stacks", thread.Stacks.Len(),
		"funcs", thread.Funcs.Len(),
	)
	return thread, nil
}

// loadDerivation reads the profile of params and derives its call tree.
func loadDerivation(ctx context.Context, params *deriveParams) (*derive.Result, *config.Config, error) {
	cfg, err := loadConfig(params.inputParams)
	if err != nil {
		return nil, nil, err
	}
	p, err := readProfile(ctx, params.File, cfg)
	if err != nil {
		return nil, nil, err
	}
	thread, err := selectThread(ctx, p, params.Thread)
	if err != nil {
		return nil, nil, err
	}
	ctx = phlarecontext.WrapThread(ctx, thread.Name)
	cache, err := derive.NewCache(ctx, cfg.CacheSize, p.Meta)
	if err != nil {
		return nil, nil, err
	}
	return cache.Get(thread, params.options(cfg)), cfg, nil
}
