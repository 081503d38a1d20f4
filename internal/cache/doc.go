// Package cache remembers the last input and expected output given for each
// source file, so a later run can replay them without prompting.
//
// The whole cache lives in one JSON file (by default
// $XDG_CACHE_HOME/cphelper/cache.json). [Open] loads it at the start of a run,
// [Store.Save] and [Store.Lookup] work in memory, and [Store.Close] writes it
// back atomically. The store holds at most [MaxEntries] files; saving a new
// file into a full store evicts the entry with the oldest timestamp, ties
// broken by path.
//
// Concurrent cpr processes are not coordinated: the last one to close wins.
package cache
