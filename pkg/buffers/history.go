package buffers

import (
	"context"
	"time"

	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
)

// loadHistory starts a backfill of a channel or pins buffer. It runs on the
// loop; the returned channel closes once the result has been applied, or
// right away when nothing was started.
func (m *Manager) loadHistory(r *Registry, key Key) <-chan struct{} {
	if key.Kind != KeyChannel && key.Kind != KeyPins {
		return closedChan()
	}
	b, ok := r.Get(key)
	if !ok {
		return closedChan()
	}
	s, ok := m.holder.Current()
	if !ok {
		return closedChan()
	}
	if !b.history.begin() {
		return closedChan()
	}

	b.view.Clear()
	done := make(chan struct{})
	go m.backfill(s, key, done, time.Now())
	return done
}

// backfill fetches one page off the loop and posts the result back
func (m *Manager) backfill(s session.Session, key Key, done chan struct{}, started time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), m.fetchTimeout)
	defer cancel()

	var (
		page []model.Message
		err  error
		op   session.FetchOp
	)
	if key.Kind == KeyPins {
		op = session.OpPins
		page, err = s.Pins(ctx, key.ChannelID)
	} else {
		op = session.OpMessages
		page, err = s.Messages(ctx, key.ChannelID, m.fetchCount)
	}

	if err != nil {
		m.logger.Debug().Err(err).Str("buffer", key.String()).Msg("history fetch failed")
		m.metrics.RecordFetchFailure(string(op))
		m.complete(key, done, func(b *Buffer) {
			b.history.finish()
			m.metrics.RecordBackfill("failed", time.Since(started))
		})
		return
	}

	m.complete(key, done, func(b *Buffer) {
		b.history.finish()
		if key.Kind == KeyPins {
			for i := len(page) - 1; i >= 0; i-- {
				b.view.AddMessage(page[i])
			}
		} else {
			rs, haveReadState := s.ReadState(key.ChannelID)
			res := reconcile(b, page, rs, haveReadState, lastMessageID(s, key.ChannelID, page))
			m.logger.Debug().
				Str("buffer", key.String()).
				Int("appended", res.Appended).
				Int("unread", res.Unread).
				Msg("history loaded")
			if !key.GuildID.IsZero() {
				m.requestUnknownAuthors(s, key, page)
			}
		}
		m.metrics.RecordBackfill("ok", time.Since(started))
	})
}

// complete re-enters the loop, re-resolves the buffer and applies fn. done
// is closed in every outcome.
func (m *Manager) complete(key Key, done chan struct{}, fn func(b *Buffer)) {
	m.loop.PostWithDrop(func(r *Registry) {
		defer close(done)
		if b, ok := r.Get(key); ok {
			fn(b)
		}
	}, func() { close(done) })
}

func lastMessageID(cache session.Cache, channelID model.Snowflake, page []model.Message) model.Snowflake {
	if c, ok := cache.Channel(channelID); ok {
		return c.LastMessageID
	}
	if len(page) > 0 {
		return page[0].ID
	}
	return 0
}

// requestUnknownAuthors asks for the members behind authors missing from
// the member cache, in one request tagged with the channel id
func (m *Manager) requestUnknownAuthors(s session.Session, key Key, page []model.Message) {
	seen := make(map[model.Snowflake]bool)
	var unknown []model.Snowflake
	for i := len(page) - 1; i >= 0; i-- {
		id := page[i].Author.ID
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := s.Member(key.GuildID, id); !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return
	}

	m.metrics.RecordMemberRequest()
	if err := s.RequestMembers(key.GuildID, unknown, key.ChannelID.String()); err != nil {
		m.logger.Warn().Err(err).Str("guild", key.GuildID.String()).Msg("member request failed")
	}
}
