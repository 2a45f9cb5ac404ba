package model

// Permissions is a permission bit set
type Permissions uint64

const (
	PermAdministrator      Permissions = 1 << 3
	PermReadMessages       Permissions = 1 << 10
	PermSendMessages       Permissions = 1 << 11
	PermReadMessageHistory Permissions = 1 << 16

	PermAll Permissions = ^Permissions(0)
)

// Has reports whether every bit of p2 is set
func (p Permissions) Has(p2 Permissions) bool {
	return p&p2 == p2
}

// CanReadHistory reports whether both read-messages and read-history are granted
func (p Permissions) CanReadHistory() bool {
	return p.Has(PermReadMessages | PermReadMessageHistory)
}

// PermissionsFor computes a member's effective permissions in a guild
// channel: base role permissions, then @everyone, role and member
// overwrites, in that order. Owners and administrators get everything.
func PermissionsFor(g Guild, c Channel, m Member) Permissions {
	if m.User.ID == g.OwnerID {
		return PermAll
	}

	var perms Permissions
	if everyone, ok := g.EveryoneRole(); ok {
		perms |= everyone.Permissions
	}
	for _, id := range m.Roles {
		if role, ok := g.Role(id); ok {
			perms |= role.Permissions
		}
	}
	if perms.Has(PermAdministrator) {
		return PermAll
	}

	for _, ow := range c.Overwrites {
		if ow.Type == OverwriteRole && ow.ID == g.ID {
			perms &^= ow.Deny
			perms |= ow.Allow
		}
	}

	var allow, deny Permissions
	for _, ow := range c.Overwrites {
		if ow.Type != OverwriteRole || ow.ID == g.ID {
			continue
		}
		for _, id := range m.Roles {
			if id == ow.ID {
				allow |= ow.Allow
				deny |= ow.Deny
			}
		}
	}
	perms &^= deny
	perms |= allow

	for _, ow := range c.Overwrites {
		if ow.Type == OverwriteMember && ow.ID == m.User.ID {
			perms &^= ow.Deny
			perms |= ow.Allow
		}
	}
	return perms
}
