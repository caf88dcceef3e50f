package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pid-symbol-tools/internal/imaging"
)

func kbCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the reference symbol library",
	}
	cmd.AddCommand(kbCountCommand(a), kbSearchCommand(a))
	return cmd
}

func kbCountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of reference symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			base, err := a.openBase(ctx)
			if err != nil {
				return err
			}
			defer base.Close()

			n, err := base.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func kbSearchCommand(a *app) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search [image]",
		Short: "Print the reference symbols closest to an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			base, err := a.openBase(ctx)
			if err != nil {
				return err
			}
			defer base.Close()

			img, err := imaging.NewImageCache(0).Load(args[0])
			if err != nil {
				return err
			}
			matches, err := base.SearchK(ctx, img, k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "no reference symbols")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%-40s %-12s %8.2f\n", m.Label, m.Category, m.Distance)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 5, "number of matches")
	return cmd
}
