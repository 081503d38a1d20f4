// Cpr compiles, runs and checks competitive programming solutions.
//
// Commands for each language are read from a JSON config keyed by file
// extension. The input typed for a file, and the expected output when
// diffing, are remembered so the next run replays them.
//
// Usage:
//
//	cpr sol.cpp                 # compile and run, prompting for input once
//	cpr -d sol.cpp              # also compare against the expected output
//	cpr -i -d sol.cpp           # ask for input and expected output again
//	cpr -w sol.cpp              # rerun on every save
//	cpr config init             # write a starter config
//	cpr cache show --entries    # list remembered files
package main
