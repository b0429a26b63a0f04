// Copyright 2024-2026 Aiku AI

package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mattermost/mattermost/server/public/model"
)

// handleEvent classifies a websocket event and routes it to its handler.
// Unknown kinds are dropped. A handler panic is recovered and logged: the
// stream must never terminate because of a single malformed event.
func (b *Backend) handleEvent(ctx context.Context, evt *model.WebSocketEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event_type", string(evt.EventType())).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()

	switch evt.EventType() {
	case model.WebsocketEventPosted:
		b.handlePosted(ctx, evt)
	case model.WebsocketEventStatusChange:
		b.handleStatusChange(evt)
	case model.WebsocketEventHello:
		b.handleHello(evt)
	case model.WebsocketEventUserAdded:
		b.handleUserAdded(evt)
	case model.WebsocketEventUserRemoved:
		b.handleUserRemoved(evt)
	default:
		b.log.Debug().Str("event_type", string(evt.EventType())).Msg("No event handler available, ignoring")
	}
}

// handlePosted normalizes a posted event into a Message and emits it, with a
// separate mention notification when the post mentions anyone but the bot.
func (b *Backend) handlePosted(ctx context.Context, evt *model.WebSocketEvent) {
	data := evt.GetData()

	// Direct messages carry an empty team_id; everything else must match
	// the bound team.
	if teamID, _ := data["team_id"].(string); teamID != "" && teamID != b.teamID {
		b.log.Info().Str("team_id", teamID).Msg("Message came from another team, ignoring")
		return
	}

	channelID, _ := data["channel_id"].(string)
	if channelID == "" {
		channelID = evt.GetBroadcast().ChannelId
	}
	if channelID == "" {
		b.log.Error().Interface("data", data).Msg("Couldn't find a channel ID for posted event")
		return
	}

	channelType, _ := data["channel_type"].(string)
	// Direct channels have no human-readable name; the channel ID stands in.
	channelName := channelID
	if channelType != string(model.ChannelTypeDirect) {
		channelName, _ = data["channel_name"].(string)
	}

	var (
		body        string
		postID      string
		senderID    string
		attachments []string
	)
	if postJSON, ok := data["post"].(string); ok {
		var post model.Post
		if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
			b.log.Warn().Err(err).Msg("Failed to unmarshal post payload")
			return
		}
		if post.Type != "" && post.Type != model.PostTypeDefault {
			b.log.Info().Str("post_type", post.Type).Msg("Ignoring system message")
			return
		}
		body = post.Message
		postID = post.Id
		senderID = post.UserId
		attachments = post.FileIds
	}

	if uid, ok := data["user_id"].(string); ok {
		senderID = uid
	}
	if senderID == "" {
		b.log.Error().Interface("data", data).Msg("No user ID in posted event")
		return
	}

	var mentions []Person
	if mentionsJSON, ok := data["mentions"].(string); ok {
		var ids []string
		if err := json.Unmarshal([]byte(mentionsJSON), &ids); err != nil {
			b.log.Warn().Err(err).Msg("Failed to unmarshal mentions payload")
		} else {
			mentions = b.resolver.MentionsToPeople(ctx, ids)
		}
	}

	msg := &Message{
		Body:        body,
		Attachments: attachments,
		Mentions:    mentions,
		Permalink:   b.permalink(postID),
		Raw:         evt,
	}

	switch channelType {
	case string(model.ChannelTypeDirect):
		msg.Addressing = AddressingDirect
		msg.From = Person{UserID: senderID, TeamID: b.teamID, ChannelID: channelID}
		msg.To = Person{UserID: b.self.UserID, TeamID: b.teamID, ChannelID: channelID}
	case string(model.ChannelTypeOpen), string(model.ChannelTypePrivate):
		room, err := NewRoom(b, "", channelID, b.teamID)
		if err != nil {
			b.log.Error().Err(err).Msg("Failed to build sender room")
			return
		}
		to, err := NewRoom(b, channelName, "", b.teamID)
		if err != nil {
			b.log.Error().Err(err).Msg("Failed to build recipient room")
			return
		}
		msg.Addressing = AddressingGroup
		msg.From = RoomOccupant{
			Person: Person{UserID: senderID, TeamID: b.teamID, ChannelID: channelID},
			Room:   room,
		}
		msg.To = to
	default:
		b.log.Warn().
			Str("channel_type", channelType).
			Str("channel", channelName).
			Msg("Unknown channel type, unable to handle message")
		return
	}

	b.sink.OnMessage(msg)

	if len(mentions) > 0 {
		b.sink.OnMention(msg, mentions)
	}
}

// handleStatusChange maps a platform status string to a normalized presence.
// Unrecognized statuses coerce to online: liveness over precision.
func (b *Backend) handleStatusChange(evt *model.WebSocketEvent) {
	data := evt.GetData()
	userID, _ := data["user_id"].(string)
	rawStatus, _ := data["status"].(string)

	var status Status
	switch rawStatus {
	case model.StatusOnline:
		status = StatusOnline
	case model.StatusAway:
		status = StatusAway
	default:
		b.log.Error().Str("status", rawStatus).Msg("Received an unknown status type, coercing to online")
		status = StatusOnline
	}

	b.sink.OnPresence(Presence{
		Who:    Person{UserID: userID, TeamID: b.teamID},
		Status: status,
	})
}

// handleHello marks the handshake: the connected callback fires exactly once
// per process, the online presence on every hello so reconnects re-announce
// the bot.
func (b *Backend) handleHello(_ *model.WebSocketEvent) {
	b.connectedOnce.Do(func() {
		b.log.Info().Msg("Server handshake complete")
		b.sink.OnConnected()
	})
	b.sink.OnPresence(Presence{Who: b.self, Status: StatusOnline})
}

// handleUserAdded emits RoomJoined when the bot itself was added to a
// channel. Other users' membership is roster state, not backend scope.
func (b *Backend) handleUserAdded(evt *model.WebSocketEvent) {
	userID, _ := evt.GetData()["user_id"].(string)
	if userID != b.self.UserID {
		return
	}
	room, err := b.membershipRoom(evt)
	if err != nil {
		b.log.Error().Err(err).Msg("User added event without a channel")
		return
	}
	b.log.Debug().Str("channel", room.Key()).Msg("Added to channel")
	b.sink.OnRoomJoined(room)
}

// handleUserRemoved is the symmetric counterpart of handleUserAdded; the
// removed user travels in the broadcast envelope, not the data payload.
func (b *Backend) handleUserRemoved(evt *model.WebSocketEvent) {
	if evt.GetBroadcast().UserId != b.self.UserID {
		return
	}
	room, err := b.membershipRoom(evt)
	if err != nil {
		b.log.Error().Err(err).Msg("User removed event without a channel")
		return
	}
	b.log.Debug().Str("channel", room.Key()).Msg("Removed from channel")
	b.sink.OnRoomLeft(room)
}

func (b *Backend) membershipRoom(evt *model.WebSocketEvent) (*Room, error) {
	channelID, _ := evt.GetData()["channel_id"].(string)
	if channelID == "" {
		channelID = evt.GetBroadcast().ChannelId
	}
	return NewRoom(b, "", channelID, b.teamID)
}

// permalink builds the server-side URL of a post. An empty post ID yields a
// well-formed URL that simply does not dereference.
func (b *Backend) permalink(postID string) string {
	return fmt.Sprintf("%s://%s:%d/%s/pl/%s", b.cfg.Scheme, b.cfg.Server, b.cfg.Port, b.cfg.Team, postID)
}
