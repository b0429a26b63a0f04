// Copyright 2024-2026 Aiku AI

package backend

import (
	"context"

	"github.com/mattermost/mattermost/server/public/model"
)

// PlatformClient is the subset of the Mattermost REST API the backend needs.
// *model.Client4 satisfies it directly; tests substitute an httptest-backed
// client instead of mocking method by method.
type PlatformClient interface {
	Login(ctx context.Context, loginID, password string) (*model.User, *model.Response, error)
	Logout(ctx context.Context) (*model.Response, error)
	GetMe(ctx context.Context, etag string) (*model.User, *model.Response, error)
	GetUser(ctx context.Context, userID, etag string) (*model.User, *model.Response, error)
	GetUserByUsername(ctx context.Context, username, etag string) (*model.User, *model.Response, error)
	GetUsersNotInChannel(ctx context.Context, teamID, channelID string, page, perPage int, etag string) ([]*model.User, *model.Response, error)

	GetTeamByName(ctx context.Context, name, etag string) (*model.Team, *model.Response, error)
	GetTeamStats(ctx context.Context, teamID, etag string) (*model.TeamStats, *model.Response, error)

	GetChannel(ctx context.Context, channelID, etag string) (*model.Channel, *model.Response, error)
	GetChannelByName(ctx context.Context, channelName, teamID, etag string) (*model.Channel, *model.Response, error)
	CreateChannel(ctx context.Context, channel *model.Channel) (*model.Channel, *model.Response, error)
	UpdateChannel(ctx context.Context, channel *model.Channel) (*model.Channel, *model.Response, error)
	DeleteChannel(ctx context.Context, channelID string) (*model.Response, error)
	CreateDirectChannel(ctx context.Context, userID1, userID2 string) (*model.Channel, *model.Response, error)
	GetChannelMembers(ctx context.Context, channelID string, page, perPage int, etag string) (model.ChannelMembers, *model.Response, error)
	AddChannelMember(ctx context.Context, channelID, userID string) (*model.ChannelMember, *model.Response, error)
	RemoveUserFromChannel(ctx context.Context, channelID, userID string) (*model.Response, error)
	GetChannelsForTeamForUser(ctx context.Context, teamID, userID string, includeDeleted bool, etag string) ([]*model.Channel, *model.Response, error)
	GetPublicChannelsForTeam(ctx context.Context, teamID string, page, perPage int, etag string) ([]*model.Channel, *model.Response, error)

	CreatePost(ctx context.Context, post *model.Post) (*model.Post, *model.Response, error)
}

var _ PlatformClient = (*model.Client4)(nil)
