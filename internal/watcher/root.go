// Package watcher owns the filesystem side of the development loop: the
// Manager keeps exactly one fsnotify watcher per watched root, and the
// Debouncer turns bursts of raw events into one coalesced signal per root.
package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// RootID identifies a watched root.
type RootID int

const (
	AssetsRoot RootID = iota
	SourceRoot
	ConfigFile
)

// String returns the string representation of the RootID
func (r RootID) String() string {
	switch r {
	case AssetsRoot:
		return "assets"
	case SourceRoot:
		return "source"
	case ConfigFile:
		return "config"
	default:
		return "unknown"
	}
}

// WatchRoot is one location watched by the Manager. An optional root whose
// path is missing is skipped; a required one is fatal.
type WatchRoot struct {
	ID       RootID
	Path     string
	Required bool
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

func eventTypeOf(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

// RawEvent is a single filesystem notification for a watched root.
type RawEvent struct {
	Root RootID
	Path string
	Type EventType
	Time time.Time
}

// PendingChange accumulates raw events for one root until its quiet window
// has elapsed.
type PendingChange struct {
	Root          RootID
	LastEventTime time.Time
	Count         int
}

// Signal is a coalesced "changed" notification for one root.
type Signal struct {
	Root          RootID
	Count         int
	LastEventTime time.Time
}

// EventSink receives raw events from the Manager.
type EventSink interface {
	Post(event RawEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event RawEvent)

// Post calls f(event).
func (f EventSinkFunc) Post(event RawEvent) {
	f(event)
}
