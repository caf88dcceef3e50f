// Package cli wires configuration and components into the pid-symbols
// command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// BuildInfo is stamped into the binary by ldflags.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// NewRootCommand builds the command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	a := newApp()

	root := &cobra.Command{
		Use:   "pid-symbols",
		Short: "Extract and verify symbols on P&ID diagrams",
		Long: `pid-symbols tiles piping and instrumentation diagrams, detects symbols on each
tile and verifies them against a library of reference symbols.

Run "pid-symbols serve" to expose the same operations as MCP tools over stdio.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file (default ./pid-symbols.yaml when present)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file with secrets such as GOOGLE_API_KEY")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("kb", "", "knowledge base backend: sqlite or qdrant")
	flags.String("kb-path", "", "sqlite knowledge base file")
	flags.String("detector", "", "detector backend: gemini or shapes")
	if err := bindFlags(a, flags, map[string]string{
		"log.level":        "log-level",
		"kb.backend":       "kb",
		"kb.path":          "kb-path",
		"detector.backend": "detector",
	}); err != nil {
		panic(err)
	}

	root.AddCommand(
		serveCommand(a, info),
		tileCommand(a),
		ingestCommand(a),
		runCommand(a),
		kbCommand(a),
		versionCommand(info),
	)
	return root
}

// bindFlags binds each config key to a flag so an explicitly set flag
// overrides file and environment values.
func bindFlags(a *app, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

func versionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pid-symbols %s\n", info.Version)
			fmt.Fprintf(out, "  Build time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", info.GitCommit)
		},
	}
}
