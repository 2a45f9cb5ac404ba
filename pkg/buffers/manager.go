// Package buffers keeps host buffers consistent with the remote guild and
// channel graph: it resolves display order, materializes buffers, tracks
// unread state, backfills history and builds nicklists.
//
// All buffer state lives in a Registry owned by a uiloop.Loop. Workers run
// on their own goroutines holding a session and a buffer Key only, and
// post their results back to the loop, where the buffer is looked up again.
package buffers

import (
	"context"
	"time"

	"github.com/aeolun/guildbuf/pkg/config"
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
	"github.com/aeolun/guildbuf/pkg/uiloop"
	"github.com/rs/zerolog"
)

const defaultFetchTimeout = 30 * time.Second

// Manager drives the registry from session events and user actions
type Manager struct {
	holder  *session.Holder
	loop    *uiloop.Loop[*Registry]
	logger  zerolog.Logger
	metrics *Metrics

	fetchCount   int
	usePresence  bool
	fetchTimeout time.Duration
}

// NewManager creates a manager. The loop must own the registry the
// manager's buffers live in; metrics may be nil.
func NewManager(holder *session.Holder, loop *uiloop.Loop[*Registry], cfg config.Config, logger zerolog.Logger, metrics *Metrics) *Manager {
	fetchCount := cfg.History.FetchCount
	if fetchCount <= 0 {
		fetchCount = config.DefaultConfig().History.FetchCount
	}
	return &Manager{
		holder:       holder,
		loop:         loop,
		logger:       logger,
		metrics:      metrics,
		fetchCount:   fetchCount,
		usePresence:  cfg.Nicklist.UsePresence,
		fetchTimeout: defaultFetchTimeout,
	}
}

// CreateBuffers materializes every guild and readable channel in display
// order. Each buffer is created with a blocking submission so a guild
// buffer always exists before its channels.
func (m *Manager) CreateBuffers(ctx context.Context) error {
	s, ok := m.holder.Current()
	if !ok {
		return session.ErrNotConnected
	}

	for _, gc := range NewResolver(s, m.logger).Hierarchy(ctx) {
		g := gc.Guild
		settings, _ := s.GuildSettings(g.ID)
		nick := selfNick(s, g.ID)

		if err := m.loop.PostBlocking(ctx, func(r *Registry) { r.CreateGuild(g) }); err != nil {
			return err
		}

		for _, c := range gc.Channels {
			if !Readable(s, g, c) {
				m.logger.Debug().Str("channel", c.ID.String()).Msg("skipping unreadable channel")
				continue
			}
			gch := GuildChannel{Channel: c, GuildName: g.Name, Nick: nick, Muted: settings.ChannelMuted(c.ID)}
			unread := HasUnread(s, c)
			if err := m.loop.PostBlocking(ctx, func(r *Registry) {
				if b := r.CreateChannel(gch); b != nil {
					applyInitialUnread(b, unread)
				}
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateAutojoinBuffers materializes the configured autojoin items plus
// every watched channel that has unread messages
func (m *Manager) CreateAutojoinBuffers(ctx context.Context, autojoin, watched []config.Item) error {
	s, ok := m.holder.Current()
	if !ok {
		return session.ErrNotConnected
	}

	res := NewResolver(s, m.logger)
	items := append(append([]config.Item(nil), autojoin...), res.UnreadWatched(ctx, watched)...)

	for _, t := range res.Flatten(ctx, items) {
		if t.GuildID.IsZero() {
			m.createDirect(ctx, s, t.ChannelIDs)
			continue
		}

		g, ok := s.Guild(t.GuildID)
		if !ok {
			m.logger.Warn().Str("guild", t.GuildID.String()).Msg("autojoin guild not in cache")
			continue
		}
		nick := selfNick(s, g.ID)
		if err := m.loop.PostBlocking(ctx, func(r *Registry) { r.CreateGuild(g) }); err != nil {
			return err
		}

		for _, id := range t.ChannelIDs {
			c, ok := s.Channel(id)
			if !ok || c.GuildID != g.ID {
				m.logger.Debug().Str("channel", id.String()).Msg("autojoin channel not in cache")
				continue
			}
			if !Readable(s, g, c) {
				continue
			}
			gch := GuildChannel{Channel: c, GuildName: g.Name, Nick: nick, Muted: channelMuted(s, g.ID, c.ID)}
			unread := HasUnread(s, c)
			if err := m.loop.PostBlocking(ctx, func(r *Registry) {
				if b := r.CreateChannel(gch); b != nil {
					applyInitialUnread(b, unread)
				}
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) createDirect(ctx context.Context, s session.Session, ids []model.Snowflake) {
	nick := "@" + s.CurrentUser().Name
	for _, id := range ids {
		c, err := s.FetchChannel(ctx, id)
		if err != nil {
			m.logger.Warn().Err(err).Str("channel", id.String()).Msg("cache miss")
			m.metrics.RecordFetchFailure(string(session.OpFetchChannel))
			continue
		}
		unread := HasUnread(s, c)
		m.loop.Post(func(r *Registry) {
			b := r.CreateDirect(c, nick)
			if b == nil {
				return
			}
			applyInitialUnread(b, unread)
			loadDirectNicks(s, b, c, m.usePresence)
		})
	}
}

// Display runs the first-display hooks of a buffer: history backfill and
// nicklist load, each only if it has not happened yet. The returned channel
// closes when both are done.
func (m *Manager) Display(key Key) <-chan struct{} {
	return m.post(func(r *Registry) <-chan struct{} {
		b, ok := r.Get(key)
		if !ok {
			return closedChan()
		}
		var pending []<-chan struct{}
		if !b.history.loaded {
			pending = append(pending, m.loadHistory(r, key))
		}
		if !b.nicks.loaded {
			pending = append(pending, m.loadNicks(r, key))
		}
		return joinDone(pending...)
	})
}

// Refresh refetches a buffer's history unless a fetch is already running
func (m *Manager) Refresh(key Key) <-chan struct{} {
	return m.post(func(r *Registry) <-chan struct{} {
		return m.loadHistory(r, key)
	})
}

// Resume refetches every buffer whose history was already loaded, after
// the connection came back
func (m *Manager) Resume() <-chan struct{} {
	return m.post(func(r *Registry) <-chan struct{} {
		var pending []<-chan struct{}
		for _, b := range r.Buffers() {
			if b.history.loaded {
				pending = append(pending, m.loadHistory(r, b.key))
			}
		}
		return joinDone(pending...)
	})
}

// OpenPins creates the pinned messages buffer of a cached channel,
// switches to it and loads the pins
func (m *Manager) OpenPins(channelID model.Snowflake) <-chan struct{} {
	return m.post(func(r *Registry) <-chan struct{} {
		s, ok := m.holder.Current()
		if !ok {
			return closedChan()
		}
		c, ok := s.Channel(channelID)
		if !ok {
			m.logger.Debug().Str("channel", channelID.String()).Msg("pins requested for unknown channel")
			return closedChan()
		}
		b := r.CreatePins(c)
		return m.loadHistory(r, b.key)
	})
}

// post runs fn on the loop and returns a channel closed once the channel
// fn returns is closed. It is closed without running fn if the loop is
// stopped or drops the task on Stop.
func (m *Manager) post(fn func(r *Registry) <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	m.loop.PostWithDrop(func(r *Registry) {
		inner := fn(r)
		go func() {
			<-inner
			close(done)
		}()
	}, func() { close(done) })
	return done
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// joinDone closes once every input has closed
func joinDone(chs ...<-chan struct{}) <-chan struct{} {
	switch len(chs) {
	case 0:
		return closedChan()
	case 1:
		return chs[0]
	}
	done := make(chan struct{})
	go func() {
		for _, ch := range chs {
			<-ch
		}
		close(done)
	}()
	return done
}
