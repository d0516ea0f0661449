// Package devloop runs the development loop: it watches the project, turns
// coalesced changes into rebuilds and restarts itself when the config file
// changes.
package devloop

// State is the state of the development loop.
type State int

const (
	Starting State = iota
	Watching
	Rebuilding
	Restarting
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Watching:
		return "watching"
	case Rebuilding:
		return "rebuilding"
	case Restarting:
		return "restarting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Transition is one state change of the loop.
type Transition struct {
	From State
	To   State
}
