// Package session is the buffer core's view onto the remote connection
// layer: a read-only cache of guilds, channels, members and presence,
// remote fetchers for history, and the member lookup request it emits.
package session

import (
	"context"
	"errors"

	"github.com/aeolun/guildbuf/pkg/model"
)

var (
	// ErrNotConnected is returned when no session is attached.
	ErrNotConnected = errors.New("not connected")
	// ErrNotFound indicates the remote object does not exist.
	ErrNotFound = errors.New("not found")
)

// Cache is a point-in-time view of the connection layer's cache. It is read
// concurrently by workers and the UI loop and never mutated by the core.
type Cache interface {
	CurrentUser() model.User
	GuildPositions() []model.Snowflake
	Guild(id model.Snowflake) (model.Guild, bool)
	GuildSettings(id model.Snowflake) (model.GuildSettings, bool)
	Channel(id model.Snowflake) (model.Channel, bool)
	Member(guildID, userID model.Snowflake) (model.Member, bool)
	Members(guildID model.Snowflake) []model.Member
	Presence(userID model.Snowflake) (model.Presence, bool)
	ReadState(channelID model.Snowflake) (model.ReadState, bool)
}

// Fetcher performs remote requests. Message and pin lists are returned
// newest first, the order the remote pages them.
type Fetcher interface {
	Guilds(ctx context.Context) ([]model.Guild, error)
	Channels(ctx context.Context, guildID model.Snowflake) ([]model.Channel, error)
	FetchChannel(ctx context.Context, channelID model.Snowflake) (model.Channel, error)
	Messages(ctx context.Context, channelID model.Snowflake, limit int) ([]model.Message, error)
	Pins(ctx context.Context, channelID model.Snowflake) ([]model.Message, error)
}

// MemberRequester asks the remote to send member data for the given users
// of a guild. The nonce tags the response.
type MemberRequester interface {
	RequestMembers(guildID model.Snowflake, userIDs []model.Snowflake, nonce string) error
}

// Session is everything the core consumes from a live connection
type Session interface {
	Cache
	Fetcher
	MemberRequester
}
