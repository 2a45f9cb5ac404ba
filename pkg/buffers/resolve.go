package buffers

import (
	"context"
	"sort"

	"github.com/aeolun/guildbuf/pkg/config"
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
	"github.com/rs/zerolog"
)

// GuildChannels is one resolved guild with its channels in display order
type GuildChannels struct {
	Guild    model.Guild
	Channels []model.Channel
}

// Target is a flattened autojoin group: the channels of one guild, or
// direct conversations when GuildID is zero
type Target struct {
	GuildID    model.Snowflake
	ChannelIDs []model.Snowflake
}

// OrderGuilds orders guilds by the user's position list. Guilds missing
// from the list are prepended as a block, ascending by id.
func OrderGuilds(positions []model.Snowflake, guilds []model.Guild) []model.Guild {
	byID := make(map[model.Snowflake]model.Guild, len(guilds))
	for _, g := range guilds {
		byID[g.ID] = g
	}

	positioned := make([]model.Guild, 0, len(guilds))
	for _, id := range positions {
		if g, ok := byID[id]; ok {
			positioned = append(positioned, g)
			delete(byID, id)
		}
	}

	rest := make([]model.Guild, 0, len(byID))
	for _, g := range byID {
		rest = append(rest, g)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	return append(rest, positioned...)
}

// SortChannels orders channels by position, ties by id
func SortChannels(channels []model.Channel) {
	sort.SliceStable(channels, func(i, j int) bool {
		if channels[i].Position != channels[j].Position {
			return channels[i].Position < channels[j].Position
		}
		return channels[i].ID < channels[j].ID
	})
}

// Resolver produces the ordered guild/channel hierarchy from a session
type Resolver struct {
	session session.Session
	logger  zerolog.Logger
}

// NewResolver creates a resolver over s
func NewResolver(s session.Session, logger zerolog.Logger) *Resolver {
	return &Resolver{session: s, logger: logger}
}

// Hierarchy fetches every guild and its channels. A failed channel fetch
// skips that guild's channels; a failed guild fetch yields nothing.
func (r *Resolver) Hierarchy(ctx context.Context) []GuildChannels {
	guilds, err := r.session.Guilds(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to fetch guilds")
		return nil
	}

	ordered := OrderGuilds(r.session.GuildPositions(), guilds)
	out := make([]GuildChannels, 0, len(ordered))
	for _, g := range ordered {
		channels, err := r.session.Channels(ctx, g.ID)
		if err != nil {
			r.logger.Warn().Err(err).Str("guild", g.ID.String()).Msg("failed to fetch channels, skipping guild")
			channels = nil
		}
		SortChannels(channels)
		out = append(out, GuildChannels{Guild: g, Channels: channels})
	}
	return out
}

// Flatten expands configured items into targets grouped by guild in order
// of first appearance, without duplicates. Guild items expand to every
// channel of the guild in display order.
func (r *Resolver) Flatten(ctx context.Context, items []config.Item) []Target {
	var targets []Target
	index := make(map[model.Snowflake]int)
	seen := make(map[model.Snowflake]bool)

	add := func(guildID, channelID model.Snowflake) {
		i, ok := index[guildID]
		if !ok {
			i = len(targets)
			index[guildID] = i
			targets = append(targets, Target{GuildID: guildID})
		}
		if channelID.IsZero() || seen[channelID] {
			return
		}
		seen[channelID] = true
		targets[i].ChannelIDs = append(targets[i].ChannelIDs, channelID)
	}

	for _, item := range items {
		if !item.IsGuild() {
			add(item.GuildID, item.ChannelID)
			continue
		}
		channels, err := r.session.Channels(ctx, item.GuildID)
		if err != nil {
			r.logger.Warn().Err(err).Str("guild", item.GuildID.String()).Msg("failed to fetch channels for autojoin")
			continue
		}
		SortChannels(channels)
		add(item.GuildID, 0)
		for _, c := range channels {
			add(item.GuildID, c.ID)
		}
	}
	return targets
}

// UnreadWatched returns the watched channels that have unread messages,
// as items ready to append to the autojoin list
func (r *Resolver) UnreadWatched(ctx context.Context, watched []config.Item) []config.Item {
	var out []config.Item
	for _, t := range r.Flatten(ctx, watched) {
		for _, id := range t.ChannelIDs {
			rs, ok := r.session.ReadState(id)
			if !ok {
				continue
			}
			c, ok := r.session.Channel(id)
			if !ok || c.LastMessageID.IsZero() {
				continue
			}
			if rs.LastMessageID != c.LastMessageID {
				out = append(out, config.Item{GuildID: t.GuildID, ChannelID: id})
			}
		}
	}
	return out
}

// Readable reports whether a channel may be materialized: its kind renders
// and, for guild channels, the current user can read its history
func Readable(cache session.Cache, g model.Guild, c model.Channel) bool {
	switch c.Kind.Variant() {
	case model.VariantNone:
		return false
	case model.VariantPrivate, model.VariantGroup:
		return true
	}
	self := cache.CurrentUser()
	member, ok := cache.Member(g.ID, self.ID)
	if !ok {
		member = model.Member{GuildID: g.ID, User: self}
	}
	return model.PermissionsFor(g, c, member).CanReadHistory()
}

// selfNick is the "@name" shown as the user's nick in a guild
func selfNick(cache session.Cache, guildID model.Snowflake) string {
	self := cache.CurrentUser()
	if m, ok := cache.Member(guildID, self.ID); ok {
		return "@" + m.DisplayName()
	}
	return "@" + self.Name
}

// channelMuted combines the guild-wide mute with the channel override
func channelMuted(cache session.Cache, guildID, channelID model.Snowflake) bool {
	settings, ok := cache.GuildSettings(guildID)
	if !ok {
		return false
	}
	return settings.ChannelMuted(channelID)
}
