package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testGuild() Guild {
	return Guild{
		ID:      100,
		Name:    "test",
		OwnerID: 1,
		Roles: []Role{
			{ID: 100, Name: "@everyone", Permissions: PermReadMessages | PermReadMessageHistory},
			{ID: 200, Name: "Mods", Hoist: true, Position: 5, Permissions: PermSendMessages},
			{ID: 300, Name: "Admins", Hoist: true, Position: 10, Permissions: PermAdministrator},
		},
	}
}

func TestPermissionsFor(t *testing.T) {
	g := testGuild()

	tests := []struct {
		name        string
		channel     Channel
		member      Member
		wantHistory bool
	}{
		{
			name:        "everyone role grants history",
			channel:     Channel{ID: 1, GuildID: 100},
			member:      Member{User: User{ID: 2}},
			wantHistory: true,
		},
		{
			name: "everyone overwrite denies history",
			channel: Channel{ID: 1, GuildID: 100, Overwrites: []Overwrite{
				{ID: 100, Type: OverwriteRole, Deny: PermReadMessageHistory},
			}},
			member:      Member{User: User{ID: 2}},
			wantHistory: false,
		},
		{
			name: "role overwrite restores what everyone denied",
			channel: Channel{ID: 1, GuildID: 100, Overwrites: []Overwrite{
				{ID: 100, Type: OverwriteRole, Deny: PermReadMessages},
				{ID: 200, Type: OverwriteRole, Allow: PermReadMessages},
			}},
			member:      Member{User: User{ID: 2}, Roles: []Snowflake{200}},
			wantHistory: true,
		},
		{
			name: "member overwrite wins over role overwrite",
			channel: Channel{ID: 1, GuildID: 100, Overwrites: []Overwrite{
				{ID: 200, Type: OverwriteRole, Allow: PermReadMessages},
				{ID: 2, Type: OverwriteMember, Deny: PermReadMessages},
			}},
			member:      Member{User: User{ID: 2}, Roles: []Snowflake{200}},
			wantHistory: false,
		},
		{
			name: "administrator ignores overwrites",
			channel: Channel{ID: 1, GuildID: 100, Overwrites: []Overwrite{
				{ID: 3, Type: OverwriteMember, Deny: PermReadMessages},
			}},
			member:      Member{User: User{ID: 3}, Roles: []Snowflake{300}},
			wantHistory: true,
		},
		{
			name: "owner ignores overwrites",
			channel: Channel{ID: 1, GuildID: 100, Overwrites: []Overwrite{
				{ID: 100, Type: OverwriteRole, Deny: PermReadMessages | PermReadMessageHistory},
			}},
			member:      Member{User: User{ID: 1}},
			wantHistory: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := PermissionsFor(g, tt.channel, tt.member)
			assert.Equal(t, tt.wantHistory, perms.CanReadHistory())
		})
	}
}

func TestHighestRoles(t *testing.T) {
	g := testGuild()
	g.Roles = append(g.Roles, Role{ID: 400, Name: "Blue", Position: 20, Color: 0x0000ff})

	hoisted, colored, ok := HighestRoles(g, Member{Roles: []Snowflake{200, 300, 400}})
	assert.True(t, ok)
	assert.Equal(t, "Admins", hoisted.Name)
	assert.Equal(t, "Blue", colored.Name)

	_, _, ok = HighestRoles(g, Member{Roles: []Snowflake{400, 999}})
	assert.False(t, ok, "a member without hoisted roles has no group role")
}

func TestChannelKindVariant(t *testing.T) {
	tests := []struct {
		kind ChannelKind
		want Variant
	}{
		{KindGuildText, VariantGuild},
		{KindNews, VariantGuild},
		{KindPrivate, VariantPrivate},
		{KindGroup, VariantGroup},
		{KindCategory, VariantNone},
		{KindVoice, VariantNone},
		{KindStore, VariantNone},
	}
	for _, tt := range tests {
		if got := tt.kind.Variant(); got != tt.want {
			t.Errorf("ChannelKind(%d).Variant() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestMemberDisplayName(t *testing.T) {
	m := Member{User: User{Name: "alice"}}
	assert.Equal(t, "alice", m.DisplayName())
	m.Nick = "Alicia"
	assert.Equal(t, "Alicia", m.DisplayName())
}
