package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	phlarecontext "github.com/grafana/calltree/pkg/context"
)

var cfg struct {
	verbose bool
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Derive call trees, flame graphs and stack charts from sampled profiles.").UsageWriter(os.Stdout)
	app.Version(version.Print("calltree"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)

	treeCmd := app.Command("tree", "Print the call tree of a profile.")
	treeParams := addTreeParams(treeCmd)

	flameGraphCmd := app.Command("flamegraph", "Lay out the flame graph of a profile.")
	flameGraphParams := addFlameGraphParams(flameGraphCmd)

	stackChartCmd := app.Command("stack-chart", "Print the stack chart boxes of a profile.")
	stackChartParams := addStackChartParams(stackChartCmd)

	topCmd := app.Command("top", "List the functions with the most self weight.")
	topParams := addTopParams(topCmd)

	mcpCmd := app.Command("mcp", "Serve call tree queries over MCP on stdio.")
	mcpParams := addMCPParams(mcpCmd)

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	ctx := phlarecontext.WithLogger(context.Background(), logger)
	ctx = withOutput(ctx, os.Stdout)

	switch parsedCmd {
	case treeCmd.FullCommand():
		os.Exit(checkError(tree(ctx, treeParams)))
	case flameGraphCmd.FullCommand():
		os.Exit(checkError(flameGraph(ctx, flameGraphParams)))
	case stackChartCmd.FullCommand():
		os.Exit(checkError(stackChart(ctx, stackChartParams)))
	case topCmd.FullCommand():
		os.Exit(checkError(top(ctx, topParams)))
	case mcpCmd.FullCommand():
		os.Exit(checkError(serveMCP(ctx, mcpParams)))
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}
