package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/common/version"

	"github.com/grafana/calltree/pkg/calltree"
	"github.com/grafana/calltree/pkg/config"
	phlarecontext "github.com/grafana/calltree/pkg/context"
	"github.com/grafana/calltree/pkg/derive"
	"github.com/grafana/calltree/pkg/profile"
)

type mcpParams struct {
	ConfigFile string
}

func addMCPParams(cmd commander) *mcpParams {
	params := &mcpParams{}
	cmd.Flag("config", "Path to a YAML configuration file.").Default("").StringVar(&params.ConfigFile)
	return params
}

type loadedProfile struct {
	thread *profile.Thread
	cache  *derive.Cache
}

// profileServer answers tool calls against profiles read on first use.
type profileServer struct {
	ctx context.Context
	cfg *config.Config

	mu       sync.Mutex
	profiles map[string]*loadedProfile
}

func newProfileServer(ctx context.Context, cfg *config.Config) *profileServer {
	return &profileServer{ctx: ctx, cfg: cfg, profiles: make(map[string]*loadedProfile)}
}

func (s *profileServer) load(path string) (*loadedProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[path]; ok {
		return p, nil
	}
	p, err := readProfile(s.ctx, path, s.cfg)
	if err != nil {
		return nil, err
	}
	thread, err := selectThread(s.ctx, p, 0)
	if err != nil {
		return nil, err
	}
	cache, err := derive.NewCache(phlarecontext.WrapThread(s.ctx, thread.Name), s.cfg.CacheSize, p.Meta)
	if err != nil {
		return nil, err
	}
	loaded := &loadedProfile{thread: thread, cache: cache}
	s.profiles[path] = loaded
	return loaded, nil
}

func (s *profileServer) derivation(req mcp.CallToolRequest) (*derive.Result, error) {
	path, err := req.RequireString("file_path")
	if err != nil {
		return nil, err
	}
	p, err := s.load(path)
	if err != nil {
		return nil, err
	}
	return p.cache.Get(p.thread, derive.Options{
		Inverted: req.GetBool("inverted", s.cfg.Inverted),
		Traced:   req.GetBool("traced", s.cfg.Traced),
	}), nil
}

func (s *profileServer) callTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.derivation(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r.Lock()
	defer r.Unlock()
	if len(r.Tree.Roots()) == 0 {
		return mcp.NewToolResultText("no samples"), nil
	}
	var sb strings.Builder
	if err := r.Tree.Print(&sb, int(req.GetFloat("max_depth", float64(s.cfg.MaxDepth)))); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *profileServer) topFunctions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.derivation(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary := r.Summary()
	if n := int(req.GetFloat("top_n", 10)); n > 0 && len(summary) > n {
		summary = summary[:n]
	}
	weightType := r.Thread.Samples.WeightType
	if r.Traced {
		weightType = profile.WeightTypeTracingMs
	}
	rootTotal := r.Timings.RootTotalSummary()
	var sb strings.Builder
	for i, f := range summary {
		fmt.Fprintf(&sb, "%d. %s: self %s (%s), running %s (%s)\n", i+1, f.Name,
			calltree.FormatValueWithUnit(f.Self, weightType), calltree.FormatPercent(f.Self/rootTotal),
			calltree.FormatValueWithUnit(f.Running, weightType), calltree.FormatPercent(f.Running/rootTotal))
	}
	if sb.Len() == 0 {
		return mcp.NewToolResultText("no samples"), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *profileServer) heaviestPath(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.derivation(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r.Lock()
	defer r.Unlock()
	roots := r.Tree.Roots()
	if len(roots) == 0 {
		return mcp.NewToolResultText("no samples"), nil
	}
	path := r.Tree.FindHeavyPathInSubtree(roots[0])
	return mcp.NewToolResultText(pathString(r.Tree, path)), nil
}

func (s *profileServer) tools() []server.ServerTool {
	fileParam := mcp.WithString("file_path",
		mcp.Required(),
		mcp.Description("Path to a pprof, speedscope or folded stacks profile"),
	)
	invertedParam := mcp.WithBoolean("inverted",
		mcp.Description("Root the tree at the functions samples were taken in"),
	)
	tracedParam := mcp.WithBoolean("traced",
		mcp.Description("Weigh samples by the time until the next sample"),
	)

	return []server.ServerTool{
		{
			Tool: mcp.NewTool("call_tree",
				mcp.WithDescription("Print the call tree of a profile with running and self weights per call node."),
				fileParam, invertedParam, tracedParam,
				mcp.WithNumber("max_depth",
					mcp.Description("Maximum depth to print (0: unlimited)"),
				),
			),
			Handler: s.callTree,
		},
		{
			Tool: mcp.NewTool("top_functions",
				mcp.WithDescription("List the functions with the most self weight, with their running weight."),
				fileParam, tracedParam,
				mcp.WithNumber("top_n",
					mcp.Description("Number of functions to return (default: 10)"),
				),
			),
			Handler: s.topFunctions,
		},
		{
			Tool: mcp.NewTool("heaviest_path",
				mcp.WithDescription("Return the path from the heaviest root to the call node with the largest absolute self weight below it."),
				fileParam, invertedParam, tracedParam,
			),
			Handler: s.heaviestPath,
		},
	}
}

func serveMCP(ctx context.Context, params *mcpParams) error {
	cfg, err := config.Load(params.ConfigFile)
	if err != nil {
		return err
	}
	srv := server.NewMCPServer("calltree", version.Version, server.WithLogging())
	srv.AddTools(newProfileServer(ctx, cfg).tools()...)
	level.Info(phlarecontext.Logger(ctx)).Log("msg", "serving MCP on stdio")
	return server.ServeStdio(srv)
}
