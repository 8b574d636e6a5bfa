// Package notifications publishes an event for every registry write that
// SkyDB commits. Events flow through go-events sinks: an in-process
// broadcaster, an unbounded queue and, optionally, HTTP endpoints.
package notifications

import (
	"fmt"
	"time"

	events "github.com/docker/go-events"
)

// EventAction constants used in action field of Event.
const (
	EventActionSet    = "set"
	EventActionDelete = "delete"
)

// EventsMediaType is the mediatype for the json event envelope.
const EventsMediaType = "application/vnd.skynet.events.v1+json"

// Envelope defines the fields of a json event envelope message that can hold
// one or more events.
type Envelope struct {
	// Events make up the contents of the envelope. Events present in a single
	// envelope are not necessarily related.
	Events []Event `json:"events,omitempty"`
}

// Event describes one committed registry write.
type Event struct {
	// ID provides a unique identifier for the event.
	ID string `json:"id,omitempty"`

	// Timestamp is the time at which the event occurred.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Action indicates what action encompasses the provided event.
	Action string `json:"action,omitempty"`

	// Target uniquely describes the entry that was written.
	Target Target `json:"target,omitempty"`

	// Source identifies the client that generated the event.
	Source SourceRecord `json:"source,omitempty"`
}

// Target is the registry entry an event refers to.
type Target struct {
	PublicKey     string `json:"publicKey"`
	HashedDataKey string `json:"hashedDataKey"`
	Revision      uint64 `json:"revision"`

	// Operation is the SkyDB operation that wrote the entry, for example
	// "SetJSON".
	Operation string `json:"operation,omitempty"`

	// DataLink is the skylink stored in the entry, when it holds one.
	DataLink string `json:"dataLink,omitempty"`
}

// SourceRecord identifies the client instance that wrote the entry.
type SourceRecord struct {
	// InstanceID identifies a running client instance.
	InstanceID string `json:"instanceID,omitempty"`

	// Portal is the portal the entry was written to.
	Portal string `json:"portal,omitempty"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s/%s@%d", e.Action, e.Target.PublicKey, e.Target.HashedDataKey, e.Target.Revision)
}

// ErrSinkClosed is returned by writes to a closed sink. It is terminal.
var ErrSinkClosed = events.ErrSinkClosed
