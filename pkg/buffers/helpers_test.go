package buffers

import (
	"context"
	"testing"
	"time"

	"github.com/aeolun/guildbuf/pkg/config"
	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
	"github.com/aeolun/guildbuf/pkg/uiloop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	selfID   model.Snowflake = 1
	aliceID  model.Snowflake = 2 // guild owner
	bobID    model.Snowflake = 3
	botID    model.Snowflake = 4
	carolID  model.Snowflake = 5
	ghostID  model.Snowflake = 9 // never in the member cache
	guildID  model.Snowflake = 10
	modsID   model.Snowflake = 11
	helperID model.Snowflake = 12

	generalID  model.Snowflake = 100
	rulesID    model.Snowflake = 101
	secretID   model.Snowflake = 102
	categoryID model.Snowflake = 103
	voiceID    model.Snowflake = 104
	dmID       model.Snowflake = 200
	groupID    model.Snowflake = 201
)

const readPerms = model.PermReadMessages | model.PermReadMessageHistory

func testGuild() model.Guild {
	return model.Guild{
		ID:      guildID,
		Name:    "Gophers",
		OwnerID: aliceID,
		Roles: []model.Role{
			{ID: guildID, Name: "@everyone", Permissions: readPerms},
			{ID: modsID, Name: "Mods", Color: 0x3366ff, Hoist: true, Position: 10},
			{ID: helperID, Name: "Helpers", Hoist: true, Position: 5},
		},
	}
}

func testMessages(channelID model.Snowflake, ids ...model.Snowflake) []model.Message {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]model.Message, 0, len(ids))
	for i, id := range ids {
		author := model.User{ID: aliceID, Name: "alice"}
		if i%2 == 1 {
			author = model.User{ID: ghostID, Name: "ghost"}
		}
		msgs = append(msgs, model.Message{
			ID:        id,
			ChannelID: channelID,
			GuildID:   guildID,
			Author:    author,
			Content:   "message " + id.String(),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return msgs
}

// testSession builds a cache with one guild, a few channels of every kind
// and two direct conversations
func testSession() *session.Memory {
	s := session.NewMemory(model.User{ID: selfID, Name: "me"})
	s.SetGuildPositions([]model.Snowflake{guildID})
	s.AddGuild(testGuild())

	s.AddChannel(model.Channel{ID: generalID, GuildID: guildID, Name: "general", Topic: "welcome", Kind: model.KindGuildText, Position: 1})
	s.AddChannel(model.Channel{ID: rulesID, GuildID: guildID, Name: "rules", Kind: model.KindNews, Position: 0})
	s.AddChannel(model.Channel{ID: secretID, GuildID: guildID, Name: "secret", Kind: model.KindGuildText, Position: 2,
		Overwrites: []model.Overwrite{
			{ID: guildID, Type: model.OverwriteRole, Deny: model.PermReadMessageHistory},
			{ID: modsID, Type: model.OverwriteRole, Allow: model.PermReadMessageHistory},
		}})
	s.AddChannel(model.Channel{ID: categoryID, GuildID: guildID, Name: "Text", Kind: model.KindCategory})
	s.AddChannel(model.Channel{ID: voiceID, GuildID: guildID, Name: "Voice", Kind: model.KindVoice, Position: 3})
	s.AddChannel(model.Channel{ID: dmID, Kind: model.KindPrivate, Recipients: []model.User{{ID: bobID, Name: "bob"}}})
	s.AddChannel(model.Channel{ID: groupID, Kind: model.KindGroup, Recipients: []model.User{{ID: bobID, Name: "bob"}, {ID: carolID, Name: "carol"}}})

	s.UpsertMember(model.Member{GuildID: guildID, User: model.User{ID: selfID, Name: "me"}, Nick: "Me"})
	s.UpsertMember(model.Member{GuildID: guildID, User: model.User{ID: aliceID, Name: "alice"}, Roles: []model.Snowflake{modsID}})
	s.UpsertMember(model.Member{GuildID: guildID, User: model.User{ID: bobID, Name: "bob"}, Roles: []model.Snowflake{helperID}})
	s.UpsertMember(model.Member{GuildID: guildID, User: model.User{ID: botID, Name: "robot", Bot: true}})
	s.UpsertMember(model.Member{GuildID: guildID, User: model.User{ID: carolID, Name: "carol"}})

	s.SetPresence(model.Presence{UserID: aliceID, Status: model.StatusOnline})
	s.SetPresence(model.Presence{UserID: bobID, Status: model.StatusIdle})
	s.SetPresence(model.Presence{UserID: carolID, Status: model.StatusOffline})

	s.AddMessages(testMessages(generalID, 1000, 1001, 1002, 1003, 1004)...)
	s.AddMessages(testMessages(rulesID, 900)...)
	s.SetReadState(model.ReadState{ChannelID: generalID, LastMessageID: 1002})
	s.SetReadState(model.ReadState{ChannelID: rulesID, LastMessageID: 900})
	return s
}

type harness struct {
	t       *testing.T
	session *session.Memory
	host    *host.Memory
	holder  *session.Holder
	loop    *uiloop.Loop[*Registry]
	mgr     *Manager
}

func newHarness(t *testing.T, s *session.Memory, cfg config.Config) *harness {
	t.Helper()
	h := host.NewMemory()
	reg := NewRegistry(h, nil)
	loop := uiloop.New(reg, zerolog.Nop())
	loop.Start()
	t.Cleanup(loop.Stop)

	holder := session.NewHolder(s)
	return &harness{
		t:       t,
		session: s,
		host:    h,
		holder:  holder,
		loop:    loop,
		mgr:     NewManager(holder, loop, cfg, zerolog.Nop(), nil),
	}
}

// wait blocks until ch closes
func (h *harness) wait(ch <-chan struct{}) {
	h.t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for completion")
	}
}

func (h *harness) flush() {
	h.t.Helper()
	require.NoError(h.t, h.loop.Flush(context.Background()))
}

// onLoop runs fn on the loop and waits for it
func (h *harness) onLoop(fn func(r *Registry)) {
	h.t.Helper()
	require.NoError(h.t, h.loop.PostBlocking(context.Background(), fn))
}

func (h *harness) state(key Key) host.ViewState {
	h.t.Helper()
	s, ok := h.host.State(key.String())
	require.True(h.t, ok, "no view for %s", key)
	return s
}

func (h *harness) buffer(key Key) (history, nicks LoadState) {
	h.t.Helper()
	var found bool
	h.onLoop(func(r *Registry) {
		if b, ok := r.Get(key); ok {
			found = true
			history, nicks = b.HistoryState(), b.NicksState()
		}
	})
	require.True(h.t, found, "no buffer for %s", key)
	return history, nicks
}

func lineIDs(s host.ViewState) []model.Snowflake {
	ids := make([]model.Snowflake, 0, len(s.Lines))
	for _, l := range s.Lines {
		ids = append(ids, l.Message.ID)
	}
	return ids
}

func nickNames(s host.ViewState) map[string]string {
	out := make(map[string]string, len(s.Nicks))
	for _, n := range s.Nicks {
		out[n.Nick.Name] = n.Group
	}
	return out
}
