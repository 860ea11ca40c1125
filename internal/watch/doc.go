// Package watch keeps a project's artifact registry in sync with the file
// system through a cascade of watches.
//
// Four levels are chained top-down: the project configuration file, the
// directory containing the build directory, the build directory, and the
// contracts build directory. A level watches its parent so that it can see
// its own path appear; whenever a level (re)starts, every level below it is
// torn down and rebuilt from a fresh scan. Configuration changes reload the
// project and restart the whole cascade.
//
// A single loop goroutine owns all cascade state. Watch handles forward
// their events into the loop tagged with a generation number, so events from
// a torn-down handle are dropped. Listeners run on the loop goroutine.
package watch
