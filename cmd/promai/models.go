package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"promai/internal/registry"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models [dir]",
		Short: "List loadable models (.gguf and .zip) in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			dir := cfg.ModelsDir
			if len(args) == 1 {
				dir = args[0]
			}
			models, err := registry.LoadDir(dir)
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "no models in %s\n", dir)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFORMAT\tSIZE\tPATH")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Name, m.Format, humanize.IBytes(uint64(m.SizeBytes)), m.Path)
			}
			return w.Flush()
		},
	}
}
