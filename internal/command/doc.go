// Package command resolves per-language command templates against a source
// file.
//
// A template is a command line containing ${filename}, ${filenameWithoutExt}
// or ${fileDir} placeholders. [Parse] validates the placeholders once when the
// config is loaded; [Template.Resolve] then substitutes them for a concrete
// absolute path, and [Split] turns the result into an argument list.
package command
