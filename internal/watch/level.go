package watch

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Level identifies one stage of the watch cascade.
type Level int

// Cascade levels, top-down.
const (
	LevelConfig Level = iota
	LevelParent
	LevelBuild
	LevelContracts

	numLevels
)

func (l Level) String() string {
	switch l {
	case LevelConfig:
		return "config"
	case LevelParent:
		return "parent-directory"
	case LevelBuild:
		return "build-directory"
	case LevelContracts:
		return "contracts-directory"
	default:
		return "unknown"
	}
}

// State is the activation state of a level.
type State int

// Level states.
const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}

	return "idle"
}

// level is the loop-owned bookkeeping of one cascade stage.
type level struct {
	path   string
	handle Handle
	gen    uint64
	stop   chan struct{}
}

// levelEvent is a file system event or error tagged with the level and
// generation of the handle that produced it.
type levelEvent struct {
	level Level
	gen   uint64
	event fsnotify.Event
	err   error
}

// isRelevant filters out events that cannot change what a level observes.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// matches reports whether event concerns the entry named like target.
func matches(event fsnotify.Event, target string) bool {
	return isRelevant(event) && filepath.Base(event.Name) == filepath.Base(target)
}
