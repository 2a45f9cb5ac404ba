package buffers

import (
	"testing"

	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	h := host.NewMemory()
	r := NewRegistry(h, nil)
	c := model.Channel{ID: generalID, GuildID: guildID, Name: "general", Kind: model.KindGuildText}

	b1 := r.CreateChannel(GuildChannel{Channel: c, GuildName: "Gophers", Nick: "@me"})
	before, _ := h.State(b1.Key().String())
	b2 := r.CreateChannel(GuildChannel{Channel: c, GuildName: "Gophers", Nick: "@me"})
	after, _ := h.State(b2.Key().String())

	assert.Same(t, b1, b2)
	assert.Same(t, b1.View(), b2.View())
	assert.Equal(t, before.Localvars, after.Localvars)
	assert.Len(t, r.Buffers(), 1)
	assert.Equal(t, []string{"channel.10.100"}, h.Keys())

	_, created := r.GetOrCreate(ChannelKey(guildID, generalID))
	assert.False(t, created)
}

func TestCreateChannelLocalvars(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		muted     bool
		wantTitle string
		wantMuted string
	}{
		{"plain", "", false, "general", "0"},
		{"topic", "welcome", false, "general | welcome", "0"},
		{"muted", "", true, "general (muted)", "1"},
		{"topic muted", "welcome", true, "general | welcome (muted)", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := host.NewMemory()
			r := NewRegistry(h, nil)
			b := r.CreateChannel(GuildChannel{
				Channel:   model.Channel{ID: generalID, GuildID: guildID, Name: "general", Topic: tt.topic, Kind: model.KindGuildText},
				GuildName: "Gophers",
				Nick:      "@Me",
				Muted:     tt.muted,
			})
			require.NotNil(t, b)
			assert.Equal(t, tt.muted, b.Muted())

			s, _ := h.State("channel.10.100")
			assert.Equal(t, tt.wantTitle, s.Title)
			assert.Equal(t, "general", s.ShortName)
			assert.Equal(t, map[string]string{
				"guild_name": "Gophers",
				"server":     "Gophers",
				"guildid":    "10",
				"channelid":  "100",
				"channel":    "general",
				"nick":       "@Me",
				"muted":      tt.wantMuted,
				"type":       "channel",
			}, s.Localvars)
		})
	}
}

func TestCreateChannelSkipsNonRendering(t *testing.T) {
	r := NewRegistry(host.NewMemory(), nil)
	for _, kind := range []model.ChannelKind{model.KindCategory, model.KindVoice, model.KindStore, model.KindPrivate} {
		b := r.CreateChannel(GuildChannel{Channel: model.Channel{ID: 1, GuildID: guildID, Kind: kind}})
		assert.Nil(t, b, "kind %d", kind)
	}
	assert.Empty(t, r.Buffers())
}

func TestCreateGuild(t *testing.T) {
	h := host.NewMemory()
	r := NewRegistry(h, nil)
	r.CreateGuild(testGuild())

	s, ok := h.State("guild.10")
	require.True(t, ok)
	assert.Equal(t, "Gophers", s.ShortName)
	assert.Equal(t, "server", s.Localvars["type"])
	assert.Equal(t, "10", s.Localvars["guildid"])
	assert.Equal(t, "Gophers", s.Localvars["server"])
}

func TestCreateDirect(t *testing.T) {
	h := host.NewMemory()
	r := NewRegistry(h, nil)

	dm := r.CreateDirect(model.Channel{ID: dmID, Kind: model.KindPrivate, Recipients: []model.User{{ID: bobID, Name: "bob"}}}, "@me")
	require.NotNil(t, dm)
	assert.Equal(t, ChannelKey(0, dmID), dm.Key())
	assert.Equal(t, host.TierPrivate, dm.Tier())

	group := r.CreateDirect(model.Channel{ID: groupID, Kind: model.KindGroup, Recipients: []model.User{{Name: "bob"}, {Name: "carol"}}}, "@me")
	require.NotNil(t, group)

	s, _ := h.State("channel.dm.200")
	assert.Equal(t, "DM with bob", s.Title)
	assert.Equal(t, "private", s.Localvars["type"])
	assert.Equal(t, "bob", s.ShortName)

	s, _ = h.State("channel.dm.201")
	assert.Equal(t, "DM with bob, carol", s.Title)
	assert.Equal(t, "group", s.Localvars["type"])

	assert.Nil(t, r.CreateDirect(model.Channel{ID: 1, GuildID: guildID, Kind: model.KindGuildText}, "@me"))
}

func TestCreatePins(t *testing.T) {
	h := host.NewMemory()
	r := NewRegistry(h, nil)
	b := r.CreatePins(model.Channel{ID: generalID, GuildID: guildID, Name: "general"})

	assert.Equal(t, PinsKey(generalID), b.Key())
	assert.Equal(t, "Pins.100", h.Switched())
	s, _ := h.State("Pins.100")
	assert.Equal(t, "Pinned messages in #general", s.Title)
	assert.Equal(t, "Pinned messages in #general", s.FullName)
	assert.Equal(t, "#general pins", s.ShortName)
}

func TestChannelBuffers(t *testing.T) {
	r := NewRegistry(host.NewMemory(), nil)
	r.CreateGuild(testGuild())
	r.CreateChannel(GuildChannel{Channel: model.Channel{ID: generalID, GuildID: guildID, Kind: model.KindGuildText}})
	r.CreateChannel(GuildChannel{Channel: model.Channel{ID: 300, GuildID: 30, Kind: model.KindGuildText}})
	r.CreateDirect(model.Channel{ID: dmID, Kind: model.KindPrivate}, "@me")

	bufs := r.ChannelBuffers(guildID)
	require.Len(t, bufs, 1)
	assert.Equal(t, ChannelKey(guildID, generalID), bufs[0].Key())
	assert.Empty(t, r.ChannelBuffers(0))
}

func TestLoadTracker(t *testing.T) {
	var tr loadTracker
	assert.Equal(t, Unloaded, tr.state())
	require.True(t, tr.begin())
	assert.Equal(t, Loading, tr.state())
	assert.False(t, tr.begin())
	tr.finish()
	assert.Equal(t, Loaded, tr.state())

	// A refresh never reports a regression
	require.True(t, tr.begin())
	assert.Equal(t, Loaded, tr.state())
	tr.finish()
	assert.Equal(t, Loaded, tr.state())
}
