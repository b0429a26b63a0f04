// Copyright 2024-2026 Aiku AI

package backend

import (
	"context"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/aiku/mattermost-botcore/pkg/backend/chunk"
)

// MessageLimit is the largest chunk sent per post: the platform caps
// messages at 4000 characters and fence repair needs a little slack.
const MessageLimit = 3994

// SendMessage delivers msg to its recipient, chunking oversized bodies into
// fence-balanced parts of at most the configured size, one post per part.
// Target resolution failures are returned; delivery failures are logged and
// not retried (at-most-once semantics).
func (b *Backend) SendMessage(ctx context.Context, msg *Message) error {
	channelID, err := b.targetChannel(ctx, msg)
	if err != nil {
		return err
	}

	parts := chunk.Prepare(msg.Body, b.cfg.messageLimit())
	b.log.Debug().
		Str("channel_id", channelID).
		Int("size", len(msg.Body)).
		Int("parts", len(parts)).
		Msg("Sending message")

	for _, part := range parts {
		_, _, err := b.client.CreatePost(ctx, &model.Post{
			ChannelId: channelID,
			Message:   part,
		})
		if err != nil {
			b.log.Error().Err(err).
				Str("channel_id", channelID).
				Msg("Failed to deliver message part")
			return nil
		}
	}
	return nil
}

// targetChannel resolves the channel a message should be posted to.
func (b *Backend) targetChannel(ctx context.Context, msg *Message) (string, error) {
	if msg.To == nil {
		return "", &UnresolvedIdentifierError{Ref: "<no recipient>"}
	}
	switch to := msg.To.(type) {
	case *Room:
		return to.ID(ctx)
	case RoomOccupant:
		// A private message to a room occupant diverts to the direct
		// channel with that user.
		b.log.Debug().Str("user_id", to.UserID).Msg("Diverting group reply to direct channel")
		return b.resolver.DirectChannel(ctx, b.self.UserID, to.UserID)
	case Person:
		if to.ChannelID != "" {
			return to.ChannelID, nil
		}
		return b.resolver.DirectChannel(ctx, b.self.UserID, to.UserID)
	default:
		return "", &UnresolvedIdentifierError{Ref: msg.To.Key()}
	}
}
