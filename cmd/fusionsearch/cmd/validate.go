package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fusionsearch/internal/catalog"
	"github.com/Aman-CERP/fusionsearch/internal/output"
)

// validateResult is the JSON form of a catalog check.
type validateResult struct {
	Path     string         `json:"path"`
	Entities int            `json:"entities"`
	ByType   map[string]int `json:"by_type"`
}

func newValidateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [catalog]",
		Short: "Check a catalog without indexing it",
		Long: `Parse and validate a catalog file or directory: every entity needs a
unique id, a title and a type of component, doc or resource.`,
		Example: `  fusionsearch validate catalog.yaml
  fusionsearch validate ./catalog --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.catalogPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				cfg, err := global.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Sources.Catalog
			}
			if path == "" {
				return cmd.Usage()
			}

			docs, err := catalog.Load(path)
			if err != nil {
				return err
			}

			res := validateResult{Path: path, Entities: len(docs), ByType: map[string]int{}}
			for _, d := range docs {
				res.ByType[d.Type]++
			}

			out := output.NewAuto(cmd.OutOrStdout(), global.jsonOutput)
			if out.JSONMode() {
				return out.JSON(res)
			}
			out.Successf("%s: %d entities", path, res.Entities)
			for _, t := range []string{"component", "doc", "resource"} {
				if n := res.ByType[t]; n > 0 {
					out.Statusf("", "%s: %d", t, n)
				}
			}
			return nil
		},
	}
}
