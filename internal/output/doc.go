// Package output renders what cpr tells the user: input prompts, the
// program's stdout and stderr, replayed cache values, and the diff verdict.
//
// Colors come from fatih/color and are dropped automatically when the
// destination is not a terminal, when NO_COLOR is set, or when the
// [Reporter] is built with NoColor.
package output
