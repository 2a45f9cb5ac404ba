package model

import "strings"

// ChannelKind is the remote channel type
type ChannelKind int

const (
	KindGuildText ChannelKind = iota
	KindPrivate
	KindVoice
	KindGroup
	KindCategory
	KindNews
	KindStore
)

// Variant is the rendering-relevant classification of a channel kind
type Variant int

const (
	VariantNone    Variant = iota // never materialized (category, voice, store)
	VariantGuild                  // guild text and news channels
	VariantPrivate                // one-to-one direct conversation
	VariantGroup                  // multi-party direct conversation
)

// Variant maps every kind onto the variant the buffer core renders
func (k ChannelKind) Variant() Variant {
	switch k {
	case KindGuildText, KindNews:
		return VariantGuild
	case KindPrivate:
		return VariantPrivate
	case KindGroup:
		return VariantGroup
	case KindCategory, KindVoice, KindStore:
		return VariantNone
	}
	return VariantNone
}

// String returns the localvar "type" value for the variant
func (v Variant) String() string {
	switch v {
	case VariantGuild:
		return "channel"
	case VariantPrivate:
		return "private"
	case VariantGroup:
		return "group"
	}
	return "none"
}

// OverwriteType tells whether a permission overwrite targets a role or a member
type OverwriteType int

const (
	OverwriteRole OverwriteType = iota
	OverwriteMember
)

// Overwrite is a per-channel permission adjustment
type Overwrite struct {
	ID    Snowflake // role id or user id, depending on Type
	Type  OverwriteType
	Allow Permissions
	Deny  Permissions
}

// Channel is a conversation unit. GuildID is zero for direct conversations.
type Channel struct {
	ID            Snowflake
	GuildID       Snowflake
	Name          string
	Topic         string
	Kind          ChannelKind
	Position      int
	LastMessageID Snowflake
	Overwrites    []Overwrite
	Recipients    []User // DM and group participants, excluding the current user
}

// InGuild reports whether the channel belongs to a guild
func (c Channel) InGuild() bool {
	return !c.GuildID.IsZero()
}

// DisplayName returns the channel name, falling back to the recipients for
// direct conversations that carry no name of their own
func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	names := make([]string, 0, len(c.Recipients))
	for _, r := range c.Recipients {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
