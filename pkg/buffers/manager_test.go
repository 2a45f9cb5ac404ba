package buffers

import (
	"context"
	"errors"
	"testing"

	"github.com/aeolun/guildbuf/pkg/config"
	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
	"github.com/aeolun/guildbuf/pkg/uiloop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBuffersOrderAndFilter(t *testing.T) {
	s := testSession()
	// Not in the position list: prepended
	s.AddGuild(model.Guild{ID: 20, Name: "Newcomer", Roles: []model.Role{{ID: 20, Permissions: readPerms}}})
	s.AddChannel(model.Channel{ID: 2000, GuildID: 20, Name: "lobby", Kind: model.KindGuildText})
	h := newHarness(t, s, config.DefaultConfig())

	createAll(t, h)

	assert.Equal(t, []string{
		"guild.20",
		"channel.20.2000",
		"guild.10",
		"channel.10.101", // rules, position 0
		"channel.10.100", // general, position 1
	}, h.host.Keys())

	general := h.state(generalKey)
	assert.Equal(t, "general | welcome", general.Title)
	assert.Equal(t, "@Me", general.Localvars["nick"])
	assert.Equal(t, host.TierMessage, general.Hotlist)
	assert.Equal(t, host.TierNone, h.state(ChannelKey(guildID, rulesID)).Hotlist)
	assert.Equal(t, "@me", h.state(ChannelKey(20, 2000)).Localvars["nick"])
}

func TestCreateBuffersIdempotent(t *testing.T) {
	h := newHarness(t, testSession(), config.DefaultConfig())
	createAll(t, h)
	createAll(t, h)

	assert.Len(t, h.host.Keys(), 3)
	var count int
	h.onLoop(func(r *Registry) { count = len(r.Buffers()) })
	assert.Equal(t, 3, count)
}

func TestCreateBuffersMuting(t *testing.T) {
	tests := []struct {
		name     string
		settings model.GuildSettings
		wantMute map[model.Snowflake]bool
	}{
		{"guild muted", model.GuildSettings{Muted: true}, map[model.Snowflake]bool{generalID: true, rulesID: true}},
		{"channel override", model.GuildSettings{ChannelOverrides: map[model.Snowflake]bool{generalID: true}}, map[model.Snowflake]bool{generalID: true, rulesID: false}},
		{"none", model.GuildSettings{}, map[model.Snowflake]bool{generalID: false, rulesID: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSession()
			s.SetGuildSettings(guildID, tt.settings)
			h := newHarness(t, s, config.DefaultConfig())
			createAll(t, h)

			for id, muted := range tt.wantMute {
				st := h.state(ChannelKey(guildID, id))
				if muted {
					assert.Equal(t, "1", st.Localvars["muted"])
					assert.Contains(t, st.Title, "(muted)")
					assert.Equal(t, host.TierNone, st.Hotlist)
				} else {
					assert.Equal(t, "0", st.Localvars["muted"])
					assert.NotContains(t, st.Title, "(muted)")
				}
			}
		})
	}
}

func TestCreateBuffersDisconnected(t *testing.T) {
	h := newHarness(t, testSession(), config.DefaultConfig())
	h.holder.Disconnect()

	assert.ErrorIs(t, h.mgr.CreateBuffers(context.Background()), session.ErrNotConnected)
	assert.ErrorIs(t, h.mgr.CreateAutojoinBuffers(context.Background(), nil, nil), session.ErrNotConnected)
	assert.Empty(t, h.host.Keys())
}

func TestCreateBuffersStoppedLoop(t *testing.T) {
	h := newHarness(t, testSession(), config.DefaultConfig())
	h.loop.Stop()
	assert.ErrorIs(t, h.mgr.CreateBuffers(context.Background()), uiloop.ErrStopped)
}

func TestCreateAutojoinBuffers(t *testing.T) {
	s := testSession()
	s.SetGuildSettings(guildID, model.GuildSettings{ChannelOverrides: map[model.Snowflake]bool{rulesID: true}})
	s.SetFetchError(session.OpFetchChannel, 999, errors.New("unknown channel"))
	h := newHarness(t, s, config.DefaultConfig())

	autojoin := []config.Item{
		{GuildID: guildID, ChannelID: rulesID},
		{ChannelID: 999},
		{ChannelID: groupID},
		{GuildID: guildID, ChannelID: secretID}, // unreadable
		{GuildID: 77},                           // unknown guild
	}
	watched := []config.Item{
		{GuildID: guildID, ChannelID: generalID}, // unread: joins
	}
	require.NoError(t, h.mgr.CreateAutojoinBuffers(t.Context(), autojoin, watched))
	h.flush()

	assert.Equal(t, []string{
		"guild.10",
		"channel.10.101",
		"channel.10.100",
		"channel.dm.201",
	}, h.host.Keys())

	rules := h.state(ChannelKey(guildID, rulesID))
	assert.Equal(t, "1", rules.Localvars["muted"])

	group := h.state(ChannelKey(0, groupID))
	assert.Equal(t, "DM with bob, carol", group.Title)
	assert.Equal(t, "@me", group.Localvars["nick"])
	assert.Equal(t, "group", group.Localvars["type"])
}

func TestCreateAutojoinWatchedRead(t *testing.T) {
	h := newHarness(t, testSession(), config.DefaultConfig())
	require.NoError(t, h.mgr.CreateAutojoinBuffers(t.Context(), nil, []config.Item{{GuildID: guildID, ChannelID: rulesID}}))
	h.flush()
	assert.Empty(t, h.host.Keys())
}

func TestManagerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	s := testSession()
	s.SetFetchError(session.OpMessages, rulesID, errors.New("boom"))
	hst := host.NewMemory()
	loop := uiloop.New(NewRegistry(hst, metrics), zerolog.Nop())
	loop.Start()
	t.Cleanup(loop.Stop)
	h := &harness{t: t, session: s, host: hst, holder: session.NewHolder(s), loop: loop}
	h.mgr = NewManager(h.holder, loop, config.DefaultConfig(), zerolog.Nop(), metrics)

	createAll(t, h)
	h.wait(h.mgr.Display(generalKey))
	h.wait(h.mgr.Display(ChannelKey(guildID, rulesID)))

	values := make(map[string]float64)
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range m.GetLabel() {
				name += "/" + l.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				values[name] = c.GetValue()
			}
		}
	}

	assert.Equal(t, 1.0, values["guildbuf_buffers_created_total/guild"])
	assert.Equal(t, 2.0, values["guildbuf_buffers_created_total/channel"])
	assert.Equal(t, 1.0, values["guildbuf_backfills_total/ok"])
	assert.Equal(t, 1.0, values["guildbuf_backfills_total/failed"])
	assert.Equal(t, 1.0, values["guildbuf_fetch_failures_total/messages"])
	assert.Equal(t, 1.0, values["guildbuf_member_requests_total"])
	assert.Equal(t, 2.0, values["guildbuf_nicklist_loads_total"])
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordBufferCreated("guild")
	m.RecordBackfill("ok", 0)
	m.RecordFetchFailure("pins")
	m.RecordMemberRequest()
	m.RecordNicklistLoad()
	m.RecordRename()
}
