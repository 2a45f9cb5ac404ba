package buffers

import (
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
)

// loadNicks builds the nicklist of a buffer on first display. Guild
// channels snapshot the member list off the loop; private conversations
// are filled in place.
func (m *Manager) loadNicks(r *Registry, key Key) <-chan struct{} {
	b, ok := r.Get(key)
	if !ok || b.nicks.loaded {
		return closedChan()
	}
	s, ok := m.holder.Current()
	if !ok {
		return closedChan()
	}

	switch b.variant {
	case model.VariantPrivate:
		if c, ok := s.Channel(key.ChannelID); ok {
			loadDirectNicks(s, b, c, m.usePresence)
		}
		return closedChan()
	case model.VariantGuild:
	default:
		return closedChan()
	}

	if !b.nicks.begin() {
		return closedChan()
	}
	b.view.EnableNicklist()

	done := make(chan struct{})
	go func() {
		members := s.Members(key.GuildID)
		m.complete(key, done, func(b *Buffer) {
			b.nicks.finish()
			g, ok := s.Guild(key.GuildID)
			if !ok {
				m.logger.Debug().Str("guild", key.GuildID.String()).Msg("guild missing from cache, nicklist left empty")
				return
			}
			c := cachedChannel(s, key)
			crown := GuildHasCrown(g)
			added := 0
			for _, mem := range members {
				if addMember(s, b.view, g, c, mem, m.usePresence, crown) {
					added++
				}
			}
			m.metrics.RecordNicklistLoad()
			m.logger.Debug().Str("buffer", key.String()).Int("nicks", added).Msg("nicklist loaded")
		})
	}()
	return done
}

// cachedChannel returns the cached channel of a key, or a bare channel
// without overwrites when it is not cached
func cachedChannel(cache session.Cache, key Key) model.Channel {
	if c, ok := cache.Channel(key.ChannelID); ok {
		return c
	}
	return model.Channel{ID: key.ChannelID, GuildID: key.GuildID, Kind: model.KindGuildText}
}

// UpdateMember patches open nicklists after a member update. Only a change
// of display name does anything: the old entry is removed from each channel
// buffer of the guild and, where it was present, re-added under a fresh
// classification without presence. An unknown prior member is ignored.
func (m *Manager) UpdateMember(old *model.Member, updated model.Member) <-chan struct{} {
	if old == nil || old.DisplayName() == updated.DisplayName() {
		return closedChan()
	}
	prior := *old

	return m.post(func(r *Registry) <-chan struct{} {
		s, ok := m.holder.Current()
		if !ok {
			return closedChan()
		}
		g, ok := s.Guild(updated.GuildID)
		if !ok {
			return closedChan()
		}

		crown := GuildHasCrown(g)
		oldName := NicklistName(g, prior, crown)
		for _, b := range r.ChannelBuffers(g.ID) {
			if !b.view.RemoveNick(oldName) {
				continue
			}
			addMember(s, b.view, g, cachedChannel(s, b.key), updated, false, crown)
			m.metrics.RecordRename()
		}

		if updated.User.ID == s.CurrentUser().ID {
			refreshSelfNick(s, r)
		}
		return closedChan()
	})
}

// UpdateSelfNick recomputes the "@name" nick localvar of every channel
// buffer, after the current user's name or a guild nickname changed
func (m *Manager) UpdateSelfNick() <-chan struct{} {
	return m.post(func(r *Registry) <-chan struct{} {
		if s, ok := m.holder.Current(); ok {
			refreshSelfNick(s, r)
		}
		return closedChan()
	})
}

func refreshSelfNick(cache session.Cache, r *Registry) {
	for _, b := range r.Buffers() {
		if b.key.Kind != KeyChannel {
			continue
		}
		if b.key.IsDM() {
			b.view.SetLocalvar("nick", "@"+cache.CurrentUser().Name)
			continue
		}
		b.view.SetLocalvar("nick", selfNick(cache, b.key.GuildID))
	}
}
