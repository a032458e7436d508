package main

import (
	"fmt"
	"strings"

	"github.com/japaniel/entipedia/pkg/iso639"
	"github.com/spf13/cobra"
)

func newLanguageCmd(a *app) *cobra.Command {
	var by string
	var list bool
	cmd := &cobra.Command{
		Use:   "language [code]",
		Short: "Look up an ISO 639 language record",
		Example: `  entipedia language deu
  entipedia language --by "Language name" German
  entipedia language --by 639-1 --list`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := iso639.Build(by)
			if err != nil {
				return err
			}
			if list {
				return a.writeJSON(table.Keys())
			}
			if len(args) != 1 {
				return fmt.Errorf("language needs a code, or --list")
			}
			rec, ok := table.Lookup(strings.TrimSpace(args[0]))
			if !ok {
				return fmt.Errorf("no language with %s %q", table.KeyField(), args[0])
			}
			return a.writeJSON(rec)
		},
	}
	cmd.Flags().StringVar(&by, "by", iso639.DefaultKey, "field to look the code up by")
	cmd.Flags().BoolVar(&list, "list", false, "list every code of the --by field")
	return cmd
}
