package model

// User is a remote account
type User struct {
	ID   Snowflake
	Name string
	Bot  bool
}

// Member is a user's membership of one guild
type Member struct {
	GuildID Snowflake
	User    User
	Nick    string      // per-guild nickname override, empty when unset
	Roles   []Snowflake // role ids in the order the remote reports them
}

// DisplayName returns the nickname override when present, else the user name
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Name
}

// HighestRoles returns the member's highest hoisted role together with the
// highest colored role. ok is false when the member has no hoisted role.
func HighestRoles(g Guild, m Member) (hoisted Role, colored Role, ok bool) {
	var haveColored bool
	for _, id := range m.Roles {
		role, found := g.Role(id)
		if !found {
			continue
		}
		if role.Hoist && (!ok || role.Position > hoisted.Position) {
			hoisted = role
			ok = true
		}
		if role.Color != 0 && (!haveColored || role.Position > colored.Position) {
			colored = role
			haveColored = true
		}
	}
	return hoisted, colored, ok
}

// Status is a presence state
type Status int

const (
	StatusOffline Status = iota
	StatusOnline
	StatusIdle
	StatusDoNotDisturb
	StatusInvisible
)

// IsOnline reports whether the status counts as online for grouping.
// Invisible users appear offline to everyone else.
func (s Status) IsOnline() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDoNotDisturb:
		return true
	}
	return false
}

// Presence is a user's last known status
type Presence struct {
	UserID Snowflake
	Status Status
}
