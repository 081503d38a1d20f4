// Package pipeline runs a language's command sequence against one source
// file.
//
// Steps run in order and the first non-zero exit stops the sequence. Only
// the last step reads input; that input (and, in diff mode, the expected
// output) is replayed from the cache when available and recorded back to it
// when collected fresh. The cache is written back on every exit path,
// including interrupts and launch failures.
package pipeline
