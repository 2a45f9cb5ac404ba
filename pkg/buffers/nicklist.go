package buffers

import (
	"fmt"
	"hash/fnv"

	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
)

// Nicklist group names sort lexicographically: roles (highest position
// first), then online, offline and bots.
const (
	BotGroup     = "99999|Bot"
	OfflineGroup = "99998|Offline"
	OnlineGroup  = "99997|Online"

	roleGroupBase = 99990

	crownSuffix = " ♛"
)

var nickPalette = []string{
	"cyan", "magenta", "green", "brown", "lightblue",
	"default", "lightcyan", "lightmagenta", "lightgreen", "blue",
}

// RoleGroup names the nicklist group of a hoisted role
func RoleGroup(r model.Role) string {
	return fmt.Sprintf("%05d|%s", roleGroupBase-r.Position, r.Name)
}

// nickColor picks a stable color for a nick
func nickColor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return nickPalette[h.Sum32()%uint32(len(nickPalette))]
}

// roleColor renders a 0xRRGGBB role color
func roleColor(color int) string {
	if color == 0 {
		return "default"
	}
	return fmt.Sprintf("#%06x", color)
}

// GuildHasCrown reports whether the owner crown is shown in a guild: only
// when no role is both hoisted and administrator-granting
func GuildHasCrown(g model.Guild) bool {
	for _, r := range g.Roles {
		if r.Hoist && r.IsAdmin() {
			return false
		}
	}
	return true
}

// NicklistName is the entry name of a member, with the owner crown when
// the guild shows it
func NicklistName(g model.Guild, m model.Member, crown bool) string {
	name := m.DisplayName()
	if crown && m.User.ID == g.OwnerID {
		name += crownSuffix
	}
	return name
}

// Classify returns the nicklist group and group color of a member. An
// empty group means a flat entry.
func Classify(g model.Guild, m model.Member, online, usePresence bool) (group, color string) {
	if m.User.Bot {
		return BotGroup, "gray"
	}
	if usePresence && !online {
		return OfflineGroup, "grey"
	}
	if hoisted, colored, ok := model.HighestRoles(g, m); ok {
		return RoleGroup(hoisted), roleColor(colored.Color)
	}
	if usePresence {
		return OnlineGroup, "grey"
	}
	return "", ""
}

// userOnline treats the current user as always online
func userOnline(cache session.Cache, userID model.Snowflake) bool {
	if userID == cache.CurrentUser().ID {
		return true
	}
	p, ok := cache.Presence(userID)
	return ok && p.Status.IsOnline()
}

// addMember adds one member to a channel buffer's nicklist. It reports
// false when the member cannot read the channel.
func addMember(cache session.Cache, v host.View, g model.Guild, c model.Channel, m model.Member, usePresence, crown bool) bool {
	if !model.PermissionsFor(g, c, m).CanReadHistory() {
		return false
	}

	online := usePresence && userOnline(cache, m.User.ID)
	group, color := Classify(g, m, online, usePresence)
	name := NicklistName(g, m, crown)
	if group != "" {
		v.NicklistGroup(group, color)
	}
	v.AddNick(group, host.Nick{Name: name, Color: nickColor(name)})
	return true
}

// statusPrefix is the nick prefix shown for a presence
func statusPrefix(s model.Status) string {
	switch s {
	case model.StatusOnline:
		return "+"
	case model.StatusIdle:
		return "~"
	case model.StatusDoNotDisturb:
		return "!"
	}
	return ""
}

// loadDirectNicks fills a private buffer's nicklist with the recipient and
// the current user. It only runs with presence enabled.
func loadDirectNicks(cache session.Cache, b *Buffer, c model.Channel, usePresence bool) {
	if !usePresence || b.variant != model.VariantPrivate {
		return
	}
	b.nicks.finish()
	v := b.view
	v.EnableNicklist()

	for _, u := range c.Recipients {
		status := model.StatusOffline
		if p, ok := cache.Presence(u.ID); ok {
			status = p.Status
		}
		v.AddNick("", host.Nick{Name: u.Name, Color: nickColor(u.Name), Prefix: statusPrefix(status)})
	}

	self := cache.CurrentUser()
	status := model.StatusOnline
	if p, ok := cache.Presence(self.ID); ok {
		status = p.Status
	}
	v.AddNick("", host.Nick{Name: self.Name, Color: nickColor(self.Name), Prefix: statusPrefix(status)})
}
