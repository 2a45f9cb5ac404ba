package config

import (
	"fmt"
	"strings"

	"github.com/aeolun/guildbuf/pkg/model"
)

// Item is a parsed autojoin/watch entry: a whole guild (ChannelID zero), a
// guild channel, or a direct conversation (GuildID zero)
type Item struct {
	GuildID   model.Snowflake
	ChannelID model.Snowflake
}

// IsGuild reports whether the item names every channel of a guild
func (i Item) IsGuild() bool {
	return i.ChannelID.IsZero()
}

func (i Item) String() string {
	switch {
	case i.IsGuild():
		return i.GuildID.String()
	case i.GuildID.IsZero():
		return ":" + i.ChannelID.String()
	default:
		return i.GuildID.String() + ":" + i.ChannelID.String()
	}
}

// ParseItem parses "<guild>", "<guild>:<channel>" or ":<channel>"
func ParseItem(s string) (Item, error) {
	s = strings.TrimSpace(s)
	guildPart, channelPart, hasChannel := strings.Cut(s, ":")

	var item Item
	if guildPart != "" {
		id, err := model.ParseSnowflake(guildPart)
		if err != nil {
			return Item{}, fmt.Errorf("item %q: %w", s, err)
		}
		item.GuildID = id
	}
	if hasChannel {
		id, err := model.ParseSnowflake(channelPart)
		if err != nil {
			return Item{}, fmt.Errorf("item %q: %w", s, err)
		}
		item.ChannelID = id
	}
	if item.GuildID.IsZero() && item.ChannelID.IsZero() {
		return Item{}, fmt.Errorf("item %q: no guild or channel id", s)
	}
	return item, nil
}

// ParseItems parses a list of items, failing on the first invalid one
func ParseItems(list []string) ([]Item, error) {
	items := make([]Item, 0, len(list))
	for _, s := range list {
		item, err := ParseItem(s)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
