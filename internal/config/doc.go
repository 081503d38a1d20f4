// Package config loads the language definitions and runtime settings for cpr.
//
// The language config is a JSON object (comments allowed) mapping a language
// name to its extensions and command templates:
//
//	{"cpp": {"ext": ["cpp"], "commands": ["g++ ${filename} -o ${filenameWithoutExt}", "${filenameWithoutExt}"]}}
//
// [Find] picks $CPR_CONFIG if set, otherwise the first existing of
// ~/.cphelper.json, ~/.config/cphelper.json and ~/.config/cphelper/config.json.
// Every template is validated at load time, so a bad placeholder is reported
// before any command runs.
//
// Settings precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (CPR_CACHE_FILE, CPR_LOG_LEVEL, CPR_DIFF_FORMAT, NO_COLOR)
//  3. Built-in defaults
package config
