// Package host defines the view layer the buffer core renders into: a host
// application owning named views with titles, local variables, a hotlist
// indicator, message lines and a grouped nicklist.
package host

import "github.com/aeolun/guildbuf/pkg/model"

// Tier is a hotlist severity. Raising keeps the highest tier seen.
type Tier int

const (
	TierNone Tier = iota
	TierMessage
	TierPrivate
)

func (t Tier) String() string {
	switch t {
	case TierMessage:
		return "message"
	case TierPrivate:
		return "private"
	default:
		return "none"
	}
}

// Nick is one nicklist entry
type Nick struct {
	Name   string
	Color  string
	Prefix string
}

// View is a single host buffer. Views are not safe to use outside the
// host's execution context; pass keys across goroutines instead.
type View interface {
	Key() string

	SetTitle(title string)
	SetShortName(name string)
	SetFullName(name string)
	SetLocalvar(name, value string)
	Localvar(name string) (string, bool)

	RaiseHotlist(tier Tier)
	ClearHotlist()
	MarkRead()

	Clear()
	AddMessage(msg model.Message)

	EnableNicklist()
	// NicklistGroup creates the group if it does not exist yet
	NicklistGroup(name, color string)
	AddNick(group string, nick Nick)
	RemoveNick(name string) bool
	HasNick(name string) bool

	SwitchTo()
}

// Host creates and looks up views by key
type Host interface {
	// GetOrCreateView returns the view for key and whether it was created
	GetOrCreateView(key string) (View, bool)
	View(key string) (View, bool)
}
