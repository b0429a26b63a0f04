// Copyright 2024-2026 Aiku AI

package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Identifier is a resolved chat identity: a Person, a RoomOccupant or a Room.
// It is the sender/recipient type carried by Message.
type Identifier interface {
	// Key returns the stable identity key used for equality: the user ID
	// for people, the channel ID (or ~name while unresolved) for rooms.
	Key() string
}

// Person is a Mattermost user. The identity key is the user ID; username and
// full name are looked up on demand and never stored, so they cannot go stale.
type Person struct {
	UserID string
	TeamID string
	// ChannelID is the direct-message channel to this user, when known.
	ChannelID string
}

func (p Person) Key() string {
	return p.UserID
}

// Equal reports whether both identifiers refer to the same user.
func (p Person) Equal(other Person) bool {
	return p.UserID == other.UserID
}

// RoomOccupant is a Person inside a specific Room.
type RoomOccupant struct {
	Person
	Room *Room
}

func (o RoomOccupant) Key() string {
	return o.Room.Key() + "/" + o.UserID
}

// Equal reports whether both occupants are the same user in the same room.
func (o RoomOccupant) Equal(other RoomOccupant) bool {
	return o.UserID == other.UserID && o.Room.Key() == other.Room.Key()
}

// Room is a named or direct conversation container bound to a team. A room is
// constructed from either a name or a channel ID, never both; the missing half
// is resolved through the platform on first access. The resolved channel ID is
// memoized write-once and never re-resolved, except after Destroy.
type Room struct {
	teamID string
	b      *Backend

	mu   sync.Mutex
	name string
	id   string
}

// NewRoom builds a Room from a channel name (with or without the ~ prefix) or
// a raw channel ID. Exactly one of name and channelID must be given, and
// teamID is never optional.
func NewRoom(b *Backend, name, channelID, teamID string) (*Room, error) {
	if teamID == "" {
		return nil, fmt.Errorf("room requires a team ID")
	}
	if name != "" && channelID != "" {
		return nil, fmt.Errorf("room name and channel ID are mutually exclusive")
	}
	if name == "" && channelID == "" {
		return nil, fmt.Errorf("room requires a name or a channel ID")
	}
	return &Room{
		b:      b,
		teamID: teamID,
		name:   strings.TrimPrefix(name, "~"),
		id:     channelID,
	}, nil
}

func (r *Room) Key() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id != "" {
		return r.id
	}
	return "~" + r.name
}

func (r *Room) TeamID() string {
	return r.teamID
}

// ID returns the channel ID, resolving it from the room name on first call.
// Once resolved it is treated as stable for the process lifetime.
func (r *Room) ID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id != "" {
		return r.id, nil
	}
	id, err := r.b.resolver.ChannelNameToID(ctx, r.name)
	if err != nil {
		return "", err
	}
	r.id = id
	return r.id, nil
}

// Name returns the channel name, resolving it from the channel ID if the room
// was constructed without one.
func (r *Room) Name(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.name != "" {
		return r.name, nil
	}
	name, err := r.b.resolver.ChannelIDToName(ctx, r.id)
	if err != nil {
		return "", err
	}
	r.name = name
	return r.name, nil
}

// Equal reports whether both rooms refer to the same channel. Rooms compare by
// resolved channel ID when both have one, otherwise by name within the team.
func (r *Room) Equal(other *Room) bool {
	if other == nil {
		return false
	}
	r.mu.Lock()
	id, name := r.id, r.name
	r.mu.Unlock()
	other.mu.Lock()
	oid, oname := other.id, other.name
	other.mu.Unlock()
	if id != "" && oid != "" {
		return id == oid
	}
	return name == oname && r.teamID == other.teamID
}

func (r *Room) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.name != "" {
		return "~" + r.name
	}
	return r.id
}
