// Copyright 2024-2026 Aiku AI

package backend

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aiku/mattermost-botcore/pkg/backend/idcache"
)

// Resolver turns raw platform identifiers and textual references into typed
// identities. Lookups that have a stable answer for the process lifetime
// (username to ID, direct-channel ID per user pair) go through the bounded
// identity cache to avoid redundant network calls.
type Resolver struct {
	b     *Backend
	cache *idcache.Cache
	log   zerolog.Logger
}

func newResolver(b *Backend, cache *idcache.Cache, log zerolog.Logger) *Resolver {
	return &Resolver{
		b:     b,
		cache: cache,
		log:   log.With().Str("component", "resolver").Logger(),
	}
}

// ResolveIdentifier converts a textual reference into a Person or a Room.
//
// Supported forms:
//
//	~channelname
//	@username
//	channelid or userid (bare token, treated as a raw ID)
func (r *Resolver) ResolveIdentifier(ctx context.Context, ref string) (Identifier, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &UnresolvedIdentifierError{Ref: ref}
	}

	if strings.HasPrefix(ref, "~") {
		channelID, err := r.ChannelNameToID(ctx, strings.TrimPrefix(ref, "~"))
		if err != nil {
			return nil, &UnresolvedIdentifierError{Ref: ref, Err: err}
		}
		room, err := NewRoom(r.b, "", channelID, r.b.teamID)
		if err != nil {
			return nil, &UnresolvedIdentifierError{Ref: ref, Err: err}
		}
		return room, nil
	}

	userID := ref
	if strings.HasPrefix(ref, "@") {
		var err error
		userID, err = r.UsernameToUserID(ctx, strings.TrimPrefix(ref, "@"))
		if err != nil {
			return nil, &UnresolvedIdentifierError{Ref: ref, Err: err}
		}
	}
	person, err := r.PersonFromUserID(ctx, userID)
	if err != nil {
		return nil, &UnresolvedIdentifierError{Ref: ref, Err: err}
	}
	return person, nil
}

// PersonFromUserID builds a Person for a raw user ID, opening (or finding)
// the direct channel between the bot and that user.
func (r *Resolver) PersonFromUserID(ctx context.Context, userID string) (Person, error) {
	channelID, err := r.DirectChannel(ctx, r.b.self.UserID, userID)
	if err != nil {
		return Person{}, err
	}
	return Person{
		UserID:    userID,
		TeamID:    r.b.teamID,
		ChannelID: channelID,
	}, nil
}

// MentionsToPeople resolves the user IDs of a mention list, skipping the
// bot's own ID. A mention that fails to resolve is logged and dropped; one
// bad entry never fails the whole message.
func (r *Resolver) MentionsToPeople(ctx context.Context, userIDs []string) []Person {
	var people []Person
	for _, id := range userIDs {
		if id == r.b.self.UserID {
			continue
		}
		person, err := r.PersonFromUserID(ctx, id)
		if err != nil {
			r.log.Warn().Err(err).Str("user_id", id).Msg("Failed to resolve mention")
			continue
		}
		people = append(people, person)
	}
	return people
}

// UsernameToUserID converts a username, with or without the @ prefix, to the
// platform user ID. Results are cached.
func (r *Resolver) UsernameToUserID(ctx context.Context, name string) (string, error) {
	name = strings.TrimPrefix(name, "@")
	if id, ok := r.cache.UserID(name); ok {
		return id, nil
	}
	user, _, err := r.b.client.GetUserByUsername(ctx, name, "")
	if err != nil {
		return "", &UserNotFoundError{Name: name, Err: err}
	}
	r.cache.PutUserID(name, user.Id)
	return user.Id, nil
}

// DirectChannel returns the ID of the direct channel between two users,
// creating it if it does not exist. Creation is idempotent on the platform
// side; the result is cached per (self, other) pair.
func (r *Resolver) DirectChannel(ctx context.Context, selfID, otherID string) (string, error) {
	if id, ok := r.cache.DirectChannel(selfID, otherID); ok {
		return id, nil
	}
	channel, _, err := r.b.client.CreateDirectChannel(ctx, selfID, otherID)
	if err != nil {
		return "", &RoomNotFoundError{Room: selfID + "/" + otherID, Err: err}
	}
	r.cache.PutDirectChannel(selfID, otherID, channel.Id)
	return channel.Id, nil
}

// ChannelNameToID converts a channel name within the bound team to its ID.
func (r *Resolver) ChannelNameToID(ctx context.Context, name string) (string, error) {
	channel, _, err := r.b.client.GetChannelByName(ctx, name, r.b.teamID, "")
	if err != nil {
		return "", &RoomNotFoundError{Room: name, Err: err}
	}
	return channel.Id, nil
}

// ChannelIDToName converts a channel ID to its name.
func (r *Resolver) ChannelIDToName(ctx context.Context, channelID string) (string, error) {
	channel, _, err := r.b.client.GetChannel(ctx, channelID, "")
	if err != nil {
		return "", &RoomNotFoundError{Room: channelID, Err: err}
	}
	return channel.Name, nil
}
