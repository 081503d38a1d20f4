package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

// Exit codes. A finished pipeline exits with its last step's status instead.
const (
	ExitSuccess      = 0
	ExitMismatch     = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitRuntimeError = 4
	ExitInterrupted  = 130
)

// Streams used by the commands; tests swap them.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "cpr <file>",
	Short: "Compile, run and check a competitive programming solution",
	Long: `cpr runs the commands configured for a source file's extension, feeds the
last one the input you type (or the input remembered from the previous run),
and optionally compares its output with the expected output.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRoot,
}

// Run executes the root command and returns an exit code.
func Run() int {
	exitCode = ExitSuccess
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print cpr version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(stdout, "cpr version %s\n", version)
	},
}

func init() {
	addRootFlags(rootCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}
