// Copyright 2024-2026 Aiku AI

package backend

import (
	"context"
	"fmt"

	"github.com/mattermost/mattermost/server/public/model"
)

const memberPageLimit = 200

// Create creates the channel on the platform. The room joined callback fires
// on success.
func (r *Room) Create(ctx context.Context, private bool) error {
	name, err := r.Name(ctx)
	if err != nil {
		return &RoomOperationError{Op: "create", Room: r.Key(), Err: err}
	}

	channelType := model.ChannelTypeOpen
	if private {
		r.b.log.Info().Str("room", name).Msg("Creating private group")
		channelType = model.ChannelTypePrivate
	} else {
		r.b.log.Info().Str("room", name).Msg("Creating public channel")
	}

	channel, _, err := r.b.client.CreateChannel(ctx, &model.Channel{
		TeamId:      r.teamID,
		Name:        name,
		DisplayName: name,
		Type:        channelType,
	})
	if err != nil {
		return &RoomOperationError{Op: "create", Room: name, Err: err}
	}

	r.mu.Lock()
	r.id = channel.Id
	r.mu.Unlock()

	r.b.sink.OnRoomJoined(r)
	return nil
}

// Join adds the bot to the channel, creating a public channel first when it
// does not exist.
func (r *Room) Join(ctx context.Context) error {
	exists, err := r.Exists(ctx)
	if err != nil {
		return &RoomOperationError{Op: "join", Room: r.Key(), Err: err}
	}
	if !exists {
		r.b.log.Info().Str("room", r.Key()).Msg("Channel doesn't seem to exist, trying to create it")
		// Always creates a public channel, as the original join flow does.
		if err := r.Create(ctx, false); err != nil {
			return err
		}
		return nil
	}

	channelID, err := r.ID(ctx)
	if err != nil {
		return &RoomOperationError{Op: "join", Room: r.Key(), Err: err}
	}
	r.b.log.Info().Str("room", r.Key()).Msg("Joining channel")
	if _, _, err := r.b.client.AddChannelMember(ctx, channelID, r.b.self.UserID); err != nil {
		return &RoomOperationError{Op: "join", Room: r.Key(), Err: err}
	}
	r.b.sink.OnRoomJoined(r)
	return nil
}

// Leave removes the bot from the channel. The room left callback fires on
// success.
func (r *Room) Leave(ctx context.Context) error {
	channelID, err := r.ID(ctx)
	if err != nil {
		return &RoomOperationError{Op: "leave", Room: r.Key(), Err: err}
	}
	r.b.log.Info().Str("room", r.Key()).Str("channel_id", channelID).Msg("Leaving channel")
	if _, err := r.b.client.RemoveUserFromChannel(ctx, channelID, r.b.self.UserID); err != nil {
		return &RoomOperationError{Op: "leave", Room: r.Key(), Err: err}
	}
	r.b.sink.OnRoomLeft(r)
	return nil
}

// Destroy deletes the channel and resets the memoized channel ID, so a later
// Create resolves fresh.
func (r *Room) Destroy(ctx context.Context) error {
	channelID, err := r.ID(ctx)
	if err != nil {
		return &RoomOperationError{Op: "destroy", Room: r.Key(), Err: err}
	}
	if _, err := r.b.client.DeleteChannel(ctx, channelID); err != nil {
		return &RoomOperationError{Op: "destroy", Room: r.Key(), Err: err}
	}
	r.b.sink.OnRoomLeft(r)

	r.mu.Lock()
	r.id = ""
	r.mu.Unlock()
	return nil
}

// Invite adds the named users to the channel. Usernames are matched against
// the team members not yet in the channel.
func (r *Room) Invite(ctx context.Context, usernames ...string) error {
	channelID, err := r.ID(ctx)
	if err != nil {
		return &RoomOperationError{Op: "invite", Room: r.Key(), Err: err}
	}

	stats, _, err := r.b.client.GetTeamStats(ctx, r.teamID, "")
	if err != nil {
		return &RoomOperationError{Op: "invite", Room: r.Key(), Err: err}
	}

	candidates := make(map[string]string)
	for page := 0; page*memberPageLimit < int(stats.TotalMemberCount); page++ {
		users, _, err := r.b.client.GetUsersNotInChannel(ctx, r.teamID, channelID, page, memberPageLimit, "")
		if err != nil {
			return &RoomOperationError{Op: "invite", Room: r.Key(), Err: err}
		}
		for _, user := range users {
			candidates[user.Username] = user.Id
		}
	}

	for _, username := range usernames {
		userID, ok := candidates[username]
		if !ok {
			return &UserNotFoundError{Name: username, Err: fmt.Errorf("not in team or already in channel")}
		}
		r.b.log.Info().
			Str("username", username).
			Str("room", r.Key()).
			Str("channel_id", channelID).
			Msg("Inviting user into channel")
		if _, _, err := r.b.client.AddChannelMember(ctx, channelID, userID); err != nil {
			return &RoomOperationError{Op: "invite", Room: r.Key(), Err: err}
		}
	}
	return nil
}

// Occupants lists the members of the channel.
func (r *Room) Occupants(ctx context.Context) ([]RoomOccupant, error) {
	channelID, err := r.ID(ctx)
	if err != nil {
		return nil, err
	}
	var occupants []RoomOccupant
	for page := 0; ; page++ {
		members, _, err := r.b.client.GetChannelMembers(ctx, channelID, page, memberPageLimit, "")
		if err != nil {
			return nil, &RoomOperationError{Op: "occupants", Room: r.Key(), Err: err}
		}
		for _, member := range members {
			occupants = append(occupants, RoomOccupant{
				Person: Person{UserID: member.UserId, TeamID: r.teamID, ChannelID: channelID},
				Room:   r,
			})
		}
		if len(members) < memberPageLimit {
			break
		}
	}
	return occupants, nil
}

// Exists reports whether the channel exists in the bound team.
func (r *Room) Exists(ctx context.Context) (bool, error) {
	name, err := r.Name(ctx)
	if err != nil {
		return false, err
	}
	channels, err := r.b.Channels(ctx, false)
	if err != nil {
		return false, err
	}
	for _, ch := range channels {
		if ch.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Joined reports whether the bot is a member of the channel.
func (r *Room) Joined(ctx context.Context) (bool, error) {
	name, err := r.Name(ctx)
	if err != nil {
		return false, err
	}
	channels, err := r.b.Channels(ctx, true)
	if err != nil {
		return false, err
	}
	for _, ch := range channels {
		if ch.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// IsPrivate reports whether the channel is a private group.
func (r *Room) IsPrivate(ctx context.Context) (bool, error) {
	channel, err := r.channel(ctx)
	if err != nil {
		return false, err
	}
	return channel.Type == model.ChannelTypePrivate, nil
}

// Topic returns the channel header, empty when unset.
func (r *Room) Topic(ctx context.Context) (string, error) {
	channel, err := r.channel(ctx)
	if err != nil {
		return "", err
	}
	return channel.Header, nil
}

// SetTopic updates the channel header.
func (r *Room) SetTopic(ctx context.Context, topic string) error {
	return r.updateChannel(ctx, func(ch *model.Channel) {
		ch.Header = topic
	})
}

// Purpose returns the channel purpose, empty when unset.
func (r *Room) Purpose(ctx context.Context) (string, error) {
	channel, err := r.channel(ctx)
	if err != nil {
		return "", err
	}
	return channel.Purpose, nil
}

// SetPurpose updates the channel purpose.
func (r *Room) SetPurpose(ctx context.Context, purpose string) error {
	return r.updateChannel(ctx, func(ch *model.Channel) {
		ch.Purpose = purpose
	})
}

func (r *Room) channel(ctx context.Context) (*model.Channel, error) {
	channelID, err := r.ID(ctx)
	if err != nil {
		return nil, err
	}
	channel, _, err := r.b.client.GetChannel(ctx, channelID, "")
	if err != nil {
		return nil, &RoomNotFoundError{Room: r.Key(), Err: err}
	}
	return channel, nil
}

func (r *Room) updateChannel(ctx context.Context, mutate func(*model.Channel)) error {
	channel, err := r.channel(ctx)
	if err != nil {
		return err
	}
	mutate(channel)
	if _, _, err := r.b.client.UpdateChannel(ctx, channel); err != nil {
		return &RoomOperationError{Op: "update", Room: r.Key(), Err: err}
	}
	return nil
}
