package model

// Guild is a server-like container of channels and members
type Guild struct {
	ID      Snowflake
	Name    string
	OwnerID Snowflake
	Roles   []Role
}

// Role returns the guild role with the given id
func (g Guild) Role(id Snowflake) (Role, bool) {
	for _, r := range g.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// EveryoneRole returns the implicit @everyone role, whose id equals the guild id
func (g Guild) EveryoneRole() (Role, bool) {
	return g.Role(g.ID)
}

// GuildSettings are the current user's per-guild notification settings
type GuildSettings struct {
	Muted            bool
	ChannelOverrides map[Snowflake]bool // channel id -> muted
}

// ChannelMuted reports whether a channel is muted, either through the
// guild-wide flag or a channel override
func (s GuildSettings) ChannelMuted(channelID Snowflake) bool {
	return s.Muted || s.ChannelOverrides[channelID]
}

// Role is a named permission and grouping unit within a guild
type Role struct {
	ID          Snowflake
	Name        string
	Color       int // 0xRRGGBB, 0 when the role carries no color
	Hoist       bool
	Position    int
	Permissions Permissions
}

// IsAdmin reports whether the role grants administrator
func (r Role) IsAdmin() bool {
	return r.Permissions.Has(PermAdministrator)
}
