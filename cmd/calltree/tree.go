package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/calltree"
)

type treeParams struct {
	*deriveParams
	MaxDepth  int
	HeavyPath bool
}

func addTreeParams(cmd commander) *treeParams {
	params := &treeParams{deriveParams: addDeriveParams(cmd)}
	cmd.Flag("max-depth", "Maximum depth to print. 0 uses the configured depth.").Default("0").IntVar(&params.MaxDepth)
	cmd.Flag("heavy-path", "Also print the path to the node with the largest self weight below the heaviest root.").Default("false").BoolVar(&params.HeavyPath)
	return params
}

func pathString(t *calltree.CallTree, path callnode.Path) string {
	names := make([]string, len(path))
	for i, fn := range path {
		names[i] = t.Thread().FuncName(fn)
	}
	return strings.Join(names, " > ")
}

func tree(ctx context.Context, params *treeParams) error {
	r, cfg, err := loadDerivation(ctx, params.deriveParams)
	if err != nil {
		return err
	}
	maxDepth := params.MaxDepth
	if maxDepth == 0 {
		maxDepth = cfg.MaxDepth
	}

	r.Lock()
	defer r.Unlock()
	out := output(ctx)
	t := r.Tree
	headerClr.Fprintf(out, "%s (inverted: %v, traced: %v)\n", r.Thread.Name, r.Info.IsInverted(), r.Traced)
	roots := t.Roots()
	if len(roots) == 0 {
		_, err := fmt.Fprintln(out, "no samples")
		return err
	}
	if err := t.Print(out, maxDepth); err != nil {
		return err
	}
	if params.HeavyPath {
		itemClr.Fprint(out, "heaviest path: ")
		_, err := fmt.Fprintln(out, pathString(t, t.FindHeavyPathInSubtree(roots[0])))
		return err
	}
	return nil
}
