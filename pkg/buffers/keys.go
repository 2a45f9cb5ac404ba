package buffers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aeolun/guildbuf/pkg/model"
)

// ErrInvalidKey is returned by ParseKey for names it does not recognize
var ErrInvalidKey = errors.New("invalid buffer key")

// KeyKind tells what a buffer key names
type KeyKind int

const (
	KeyGuild KeyKind = iota + 1
	KeyChannel
	KeyPins
)

func (k KeyKind) String() string {
	switch k {
	case KeyGuild:
		return "guild"
	case KeyChannel:
		return "channel"
	case KeyPins:
		return "pins"
	}
	return "unknown"
}

// Key identifies a buffer for its whole lifetime. Direct conversations are
// channel keys with a zero GuildID.
type Key struct {
	Kind      KeyKind
	GuildID   model.Snowflake
	ChannelID model.Snowflake
}

// GuildKey returns the key of a guild buffer
func GuildKey(guildID model.Snowflake) Key {
	return Key{Kind: KeyGuild, GuildID: guildID}
}

// ChannelKey returns the key of a channel buffer; a zero guildID names a
// direct conversation
func ChannelKey(guildID, channelID model.Snowflake) Key {
	return Key{Kind: KeyChannel, GuildID: guildID, ChannelID: channelID}
}

// PinsKey returns the key of a channel's pinned messages buffer
func PinsKey(channelID model.Snowflake) Key {
	return Key{Kind: KeyPins, ChannelID: channelID}
}

// IsDM reports whether the key names a direct conversation
func (k Key) IsDM() bool {
	return k.Kind == KeyChannel && k.GuildID.IsZero()
}

// String renders the host buffer name: guild.<gid>, channel.<gid>.<cid>,
// channel.dm.<cid> or Pins.<cid>
func (k Key) String() string {
	switch k.Kind {
	case KeyGuild:
		return "guild." + k.GuildID.String()
	case KeyChannel:
		if k.GuildID.IsZero() {
			return "channel.dm." + k.ChannelID.String()
		}
		return "channel." + k.GuildID.String() + "." + k.ChannelID.String()
	case KeyPins:
		return "Pins." + k.ChannelID.String()
	}
	return ""
}

// ParseKey recovers the ids from a buffer name
func ParseKey(name string) (Key, error) {
	parts := strings.Split(name, ".")
	switch {
	case len(parts) == 2 && parts[0] == "guild":
		id, err := parseID(parts[1])
		if err != nil {
			return Key{}, fmt.Errorf("%w %q: %v", ErrInvalidKey, name, err)
		}
		return GuildKey(id), nil
	case len(parts) == 2 && parts[0] == "Pins":
		id, err := parseID(parts[1])
		if err != nil {
			return Key{}, fmt.Errorf("%w %q: %v", ErrInvalidKey, name, err)
		}
		return PinsKey(id), nil
	case len(parts) == 3 && parts[0] == "channel":
		var guildID model.Snowflake
		if parts[1] != "dm" {
			id, err := parseID(parts[1])
			if err != nil {
				return Key{}, fmt.Errorf("%w %q: %v", ErrInvalidKey, name, err)
			}
			guildID = id
		}
		channelID, err := parseID(parts[2])
		if err != nil {
			return Key{}, fmt.Errorf("%w %q: %v", ErrInvalidKey, name, err)
		}
		return ChannelKey(guildID, channelID), nil
	}
	return Key{}, fmt.Errorf("%w %q", ErrInvalidKey, name)
}

func parseID(s string) (model.Snowflake, error) {
	id, err := model.ParseSnowflake(s)
	if err != nil {
		return 0, err
	}
	if id.IsZero() {
		return 0, errors.New("zero id")
	}
	return id, nil
}
