package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fusionsearch/internal/output"
	"github.com/Aman-CERP/fusionsearch/internal/search"
)

func newSuggestCmd(global *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "suggest <prefix>",
		Short:   "Typeahead suggestions for a partial query",
		Example: `  fusionsearch suggest "data ta" --catalog catalog.yaml`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := global.openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := a.engine.Suggest(ctx, search.SuggestRequest{
				Query: strings.Join(args, " "),
				Limit: limit,
			})
			if err != nil {
				return err
			}
			return output.NewAuto(cmd.OutOrStdout(), global.jsonOutput).Suggestions(resp)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum suggestions (default from config)")
	return cmd
}
