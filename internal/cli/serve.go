package cli

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/pid-symbol-tools/internal/detection"
	"github.com/ironsheep/pid-symbol-tools/internal/server"
)

func serveCommand(a *app, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdin/stdout",
		Long: `Serve the pid_* MCP tools over stdin/stdout. Configure this command in your
MCP client. Logs go to stderr; stdout carries only protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			base, err := a.openBase(ctx)
			if err != nil {
				return err
			}
			defer base.Close()

			// detection tools report the error; the rest keep working
			var det detection.Detector
			if d, err := a.detector(); err != nil {
				a.logger.Warn("detector unavailable", "error", err)
			} else {
				det = d
			}

			server.Version = info.Version
			a.logger.Info("pid-symbols MCP server starting", "version", info.Version, "commit", info.GitCommit)
			srv := server.New(server.Deps{
				Config:   a.cfg,
				Base:     base,
				Detector: det,
				Engine:   a.engine(base),
				Metrics:  a.metrics,
			})
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
