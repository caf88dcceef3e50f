package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pid-symbol-tools/internal/knowledge"
)

func ingestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Learn a directory of reference symbol images",
		Long: `Learn every PNG or JPEG in dir as a reference symbol. The label is taken from
the file name ("Gate Valve.png" becomes gate_valve) and the category is guessed
from the label. Re-ingesting a file replaces its entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			base, err := a.openBase(ctx)
			if err != nil {
				return err
			}
			defer base.Close()

			report, err := knowledge.IngestDir(ctx, base, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "learned %d of %d images, library now holds %d symbols\n", report.Learned, report.Found, report.Total)
			names := make([]string, 0, len(report.Failed))
			for name := range report.Failed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  failed %s: %s\n", name, report.Failed[name])
			}
			return nil
		},
	}
}
