package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fusionsearch/internal/output"
	"github.com/Aman-CERP/fusionsearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode       string
	scope      string
	framework  string
	category   string
	tags       []string
	free       bool
	premium    bool
	typescript bool
	limit      int
	page       int
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog",
		Long: `Search the catalog across the keyword, vector and relational sources.

Hybrid mode blends keyword and semantic scores. The relational source is
consulted only when the other two find nothing.`,
		Example: `  fusionsearch search "data table" --catalog catalog.yaml
  fusionsearch search datepicker --mode keyword --framework react
  fusionsearch search "getting started" --scope docs --limit 5 --json
  fusionsearch search grid --free=false`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := opts.rawRequest(cmd, strings.Join(args, " "))
			return runSearch(cmd.Context(), cmd, global, raw)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Search mode: keyword, semantic, hybrid (default hybrid)")
	cmd.Flags().StringVarP(&opts.scope, "scope", "s", "", "Scope: all, components, docs, resources")
	cmd.Flags().StringVar(&opts.framework, "framework", "", "Only entities for this framework")
	cmd.Flags().StringVar(&opts.category, "category", "", "Only entities in this category")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Required tag (repeatable)")
	cmd.Flags().BoolVar(&opts.free, "free", false, "Filter on the free flag")
	cmd.Flags().BoolVar(&opts.premium, "premium", false, "Filter on the premium flag")
	cmd.Flags().BoolVar(&opts.typescript, "typescript", false, "Filter on TypeScript support")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Results per page (default from config)")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 0, "Zero-based page number")

	return cmd
}

// rawRequest builds the engine request. Boolean filters apply only when
// their flag was given, so --free=false differs from no flag.
func (o searchOptions) rawRequest(cmd *cobra.Command, query string) search.RawRequest {
	flag := func(name string, v bool) *bool {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}
	return search.RawRequest{
		Query:         query,
		Scope:         o.scope,
		Mode:          o.mode,
		Framework:     o.framework,
		Category:      o.category,
		Tags:          o.tags,
		IsFree:        flag("free", o.free),
		IsPremium:     flag("premium", o.premium),
		HasTypeScript: flag("typescript", o.typescript),
		Limit:         o.limit,
		Page:          o.page,
	}
}

func runSearch(ctx context.Context, cmd *cobra.Command, global *globalOptions, raw search.RawRequest) error {
	a, cleanup, err := global.openApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := a.engine.Search(ctx, raw)
	if err != nil {
		return err
	}
	return output.NewAuto(cmd.OutOrStdout(), global.jsonOutput).SearchResults(raw.Query, resp)
}
