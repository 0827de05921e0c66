package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chkd",
	Short: "Local coordination engine for multiple agent workers sharing one repo",
	Long: `chkd coordinates several coding-agent workers against a single
checked-out repository: it tracks a hierarchical spec checklist, assigns
each worker its own git worktree, arbitrates merges back onto the
default branch, and raises signals an operator (or orchestrating agent)
should act on.

Get started:
  chkd repo add .       Start tracking the current repository
  chkd doctor           Verify git, the database, and the worktree root
  chkd gateway          Start the persistent REST + SSE coordination daemon
  chkd ui               Launch the terminal dashboard`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.chkd/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		repoCmd,
		itemCmd,
		sessionCmd,
		workerCmd,
		migrateCmd,
		gatewayCmd,
		uiCmd,
		configCmd,
		doctorCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
