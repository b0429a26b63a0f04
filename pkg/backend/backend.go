// Copyright 2024-2026 Aiku AI

package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/mattermost-botcore/pkg/backend/idcache"
)

// Addressing says whether a message travels over a direct channel or a group
// channel.
type Addressing int

const (
	AddressingDirect Addressing = iota
	AddressingGroup
)

// Status is a normalized presence state.
type Status string

const (
	StatusOnline Status = "online"
	StatusAway   Status = "away"
)

// Message is the uniform message value emitted for every user post.
type Message struct {
	Body string
	// From is the sender: a Person on direct channels, a RoomOccupant on
	// group channels.
	From Identifier
	// To is the recipient: the bot's own Person on direct channels, the
	// Room on group channels.
	To         Identifier
	Addressing Addressing
	// Attachments holds platform file IDs attached to the post, if any.
	Attachments []string
	// Mentions lists the users mentioned in the post, excluding the bot.
	Mentions []Person
	// Permalink is the server-side URL of the post.
	Permalink string
	// Raw is the platform event this message was normalized from.
	Raw *model.WebSocketEvent
}

// IsDirect reports whether the message arrived over a direct channel.
func (m *Message) IsDirect() bool {
	return m.Addressing == AddressingDirect
}

// Presence is a normalized presence change.
type Presence struct {
	Who    Person
	Status Status
}

// Sink receives the normalized event stream. Implementations are called from
// the single event-processing goroutine, strictly in arrival order.
type Sink interface {
	OnMessage(msg *Message)
	OnMention(msg *Message, mentioned []Person)
	OnPresence(p Presence)
	OnConnected()
	OnDisconnected()
	OnRoomJoined(room *Room)
	OnRoomLeft(room *Room)
}

// Backend bridges the Mattermost event stream and REST API to a Sink. It
// owns the websocket lifecycle, classifies and normalizes incoming events,
// resolves platform identifiers into typed identities, and chunks outgoing
// messages to the platform size limit.
type Backend struct {
	cfg    Config
	client PlatformClient
	sink   Sink
	log    zerolog.Logger

	resolver *Resolver

	// Bound during bootstrap, read-only afterwards.
	self   Person
	teamID string

	openStream    func(wsURL, authToken string) (eventStream, error)
	authToken     func() string
	stopOnce      sync.Once
	stopChan      chan struct{}
	connectedOnce sync.Once
	disconnected  sync.Once
}

// New creates a Backend. The client must already carry its credentials or
// the config must hold a login and password; Serve performs the session
// login in the latter case.
func New(cfg Config, client *model.Client4, sink Sink, log zerolog.Logger) *Backend {
	b := newBackend(cfg, client, sink, log)
	b.openStream = dialWebSocket
	b.authToken = func() string { return client.AuthToken }
	return b
}

// newBackend wires a Backend around any PlatformClient. Tests use it to plug
// in an httptest-backed client and a fake stream.
func newBackend(cfg Config, client PlatformClient, sink Sink, log zerolog.Logger) *Backend {
	cache, err := idcache.New(idcache.DefaultSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	b := &Backend{
		cfg:      cfg,
		client:   client,
		sink:     sink,
		log:      log.With().Str("component", "backend").Logger(),
		stopChan: make(chan struct{}),
	}
	b.resolver = newResolver(b, cache, log)
	return b
}

// Resolver exposes identifier resolution to callers outside the event loop.
func (b *Backend) Resolver() *Resolver {
	return b.resolver
}

// Self returns the bot's own identity. Valid after bootstrap.
func (b *Backend) Self() Person {
	return b.self
}

// TeamID returns the bound team ID. Valid after bootstrap.
func (b *Backend) TeamID() string {
	return b.teamID
}

// IsFromSelf reports whether the message was sent by the bot itself.
func (b *Backend) IsFromSelf(msg *Message) bool {
	switch from := msg.From.(type) {
	case Person:
		return from.UserID == b.self.UserID
	case RoomOccupant:
		return from.UserID == b.self.UserID
	default:
		return false
	}
}

// QueryRoom builds a Room from a channel name or a channel ID within the
// bound team.
func (b *Backend) QueryRoom(room string) (*Room, error) {
	if len(room) == 26 && !strings.HasPrefix(room, "~") {
		// Mattermost IDs are 26-char alphanumeric tokens.
		return NewRoom(b, "", room, b.teamID)
	}
	return NewRoom(b, room, "", b.teamID)
}

// BuildReply constructs a reply to msg. Private replies go back over the
// direct channel to the sender even when the original arrived in a group
// channel.
func (b *Backend) BuildReply(msg *Message, body string, private bool) *Message {
	reply := &Message{
		Body: body,
		From: b.self,
	}
	if private {
		reply.Addressing = AddressingDirect
		reply.To = msg.From
		return reply
	}
	reply.Addressing = msg.Addressing
	if occupant, ok := msg.From.(RoomOccupant); ok {
		reply.To = occupant.Room
	} else {
		reply.To = msg.From
	}
	return reply
}

// PrefixGroupReply prepends the addressee's username to a group reply.
func (b *Backend) PrefixGroupReply(ctx context.Context, msg *Message, to Person) {
	msg.Body = fmt.Sprintf("@%s: %s", b.Username(ctx, to.UserID), msg.Body)
}

// Username looks up the current username for a user ID. It degrades to a
// <userid> placeholder when the lookup fails, matching the permissive
// behavior expected in log and reply formatting paths.
func (b *Backend) Username(ctx context.Context, userID string) string {
	user, _, err := b.client.GetUser(ctx, userID, "")
	if err != nil || user.Username == "" {
		b.log.Error().Err(err).Str("user_id", userID).Msg("Can't find username for user")
		return "<" + userID + ">"
	}
	return user.Username
}

// FullName looks up the current first and last name for a user ID, with the
// same placeholder fallback as Username.
func (b *Backend) FullName(ctx context.Context, userID string) string {
	user, _, err := b.client.GetUser(ctx, userID, "")
	if err != nil || (user.FirstName == "" && user.LastName == "") {
		b.log.Error().Err(err).Str("user_id", userID).Msg("No first or last name for user")
		return "<" + userID + ">"
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// Rooms returns the joined channels of the bound team, excluding direct
// channels.
func (b *Backend) Rooms(ctx context.Context) ([]*Room, error) {
	channels, _, err := b.client.GetChannelsForTeamForUser(ctx, b.teamID, b.self.UserID, false, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	var rooms []*Room
	for _, ch := range channels {
		if ch.Type == model.ChannelTypeDirect {
			continue
		}
		room, err := NewRoom(b, "", ch.Id, ch.TeamId)
		if err != nil {
			continue
		}
		room.name = ch.Name
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// Channels returns the channels of the bound team: the joined ones, plus all
// public channels unless joinedOnly is set.
func (b *Backend) Channels(ctx context.Context, joinedOnly bool) ([]*model.Channel, error) {
	channels, _, err := b.client.GetChannelsForTeamForUser(ctx, b.teamID, b.self.UserID, false, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list joined channels: %w", err)
	}
	if joinedOnly {
		return channels, nil
	}
	seen := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		seen[ch.Id] = struct{}{}
	}
	for page := 0; ; page++ {
		public, _, err := b.client.GetPublicChannelsForTeam(ctx, b.teamID, page, channelPageLimit, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list public channels: %w", err)
		}
		if len(public) == 0 {
			break
		}
		for _, ch := range public {
			if _, ok := seen[ch.Id]; !ok {
				seen[ch.Id] = struct{}{}
				channels = append(channels, ch)
			}
		}
		if len(public) < channelPageLimit {
			break
		}
	}
	return channels, nil
}

// Shutdown logs the bot out and stops the event loop.
func (b *Backend) Shutdown(ctx context.Context) {
	if _, err := b.client.Logout(ctx); err != nil {
		b.log.Warn().Err(err).Msg("Logout failed")
	}
	b.Stop()
}

// Stop makes Serve return. Safe to call more than once.
func (b *Backend) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
}

const channelPageLimit = 200
