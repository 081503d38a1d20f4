// Package cli wires together the Cobra command tree for the cpr binary.
//
// The root command takes a source file and runs its language pipeline; the
// config, cache and version subcommands manage the surrounding state. Flags
// are merged with environment settings, errors are classified once at the
// top, and Run returns the process exit code.
package cli
