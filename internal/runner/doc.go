// Package runner executes one pipeline step as a child process.
//
// The child gets its stdin from a string (empty, replayed from the cache, or
// typed by the user until end-of-stream) and its stdout and stderr are
// captured in memory. Whatever the child prints is shown to the user after
// it exits. Failing to start the command is a [*LaunchError]; a non-zero
// exit status is a normal result.
package runner
