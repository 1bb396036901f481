package models

import (
	"encoding/json"
)

// Collection names a watched backend collection.
type Collection string

const (
	CollectionUsers     Collection = "users"
	CollectionSlices    Collection = "pizza_slices"
	CollectionPurchases Collection = "purchases"
)

// Collections lists every collection that emits change notifications.
var Collections = []Collection{CollectionUsers, CollectionSlices, CollectionPurchases}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// ChangeKind is the kind of row mutation.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is a notification that a row in a watched collection changed
type ChangeEvent struct {
	Collection Collection      `json:"collection"`
	Kind       ChangeKind      `json:"kind"`
	Row        json.RawMessage `json:"row,omitempty"`
	Version    int64           `json:"version,omitempty"`
}

// NewChangeEvent marshals row into a change event.
func NewChangeEvent(collection Collection, kind ChangeKind, row any) (ChangeEvent, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{Collection: collection, Kind: kind, Row: raw}, nil
}

// DecodeRow unmarshals the affected row into dst.
func (e ChangeEvent) DecodeRow(dst any) error {
	return json.Unmarshal(e.Row, dst)
}

// Push message types sent by the server over the WebSocket channel.
const (
	MessageChange       = "CHANGE"
	MessageVersion      = "VERSION_UPDATE"
	MessageSubscribed   = "SUBSCRIBED"
	MessageUnsubscribed = "UNSUBSCRIBED"
	MessageError        = "ERROR"
)

// Actions a WebSocket client may send.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// PushMessage is one server-to-client WebSocket frame
type PushMessage struct {
	Type       string          `json:"type"`
	Collection Collection      `json:"collection,omitempty"`
	Kind       ChangeKind      `json:"kind,omitempty"`
	Row        json.RawMessage `json:"row,omitempty"`
	Version    int64           `json:"version"`
	Error      string          `json:"error,omitempty"`
}

// ClientMessage is one client-to-server WebSocket frame
type ClientMessage struct {
	Action     string     `json:"action"`
	Collection Collection `json:"collection"`
}

// Event converts a CHANGE or VERSION_UPDATE push into a change event. A
// version update carries no kind or row; receivers treat it as "re-fetch".
func (m PushMessage) Event() ChangeEvent {
	return ChangeEvent{
		Collection: m.Collection,
		Kind:       m.Kind,
		Row:        m.Row,
		Version:    m.Version,
	}
}
