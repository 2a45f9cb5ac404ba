package buffers

import (
	"fmt"
	"strings"

	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/aeolun/guildbuf/pkg/model"
)

// LoadState is the reported progress of a history or nicklist load
type LoadState int

const (
	Unloaded LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return "unloaded"
}

// loadTracker backs a one-shot loaded flag. A refresh may start a new load
// once the previous one finished; the reported state stays Loaded.
type loadTracker struct {
	loaded   bool
	inflight bool
}

func (t loadTracker) state() LoadState {
	switch {
	case t.loaded:
		return Loaded
	case t.inflight:
		return Loading
	}
	return Unloaded
}

// begin reports false when a load is already running
func (t *loadTracker) begin() bool {
	if t.inflight {
		return false
	}
	t.inflight = true
	return true
}

func (t *loadTracker) finish() {
	t.inflight = false
	t.loaded = true
}

// Buffer is the core's record of one host view
type Buffer struct {
	key     Key
	view    host.View
	variant model.Variant
	muted   bool

	history loadTracker
	nicks   loadTracker
}

func (b *Buffer) Key() Key { return b.key }
func (b *Buffer) View() host.View { return b.view }
func (b *Buffer) Variant() model.Variant { return b.variant }
func (b *Buffer) Muted() bool { return b.muted }
func (b *Buffer) HistoryState() LoadState { return b.history.state() }
func (b *Buffer) NicksState() LoadState { return b.nicks.state() }
func (b *Buffer) HistoryLoaded() bool { return b.history.loaded }
func (b *Buffer) NicksLoaded() bool { return b.nicks.loaded }

// Tier is the hotlist tier new messages raise in this buffer
func (b *Buffer) Tier() host.Tier {
	return HotlistTier(b.variant)
}

// Registry maps keys to buffers. It is owned by the UI loop: every method
// must run on it.
type Registry struct {
	host    host.Host
	metrics *Metrics

	buffers map[Key]*Buffer
	order   []Key
}

// NewRegistry creates an empty registry over h. metrics may be nil.
func NewRegistry(h host.Host, metrics *Metrics) *Registry {
	return &Registry{
		host:    h,
		metrics: metrics,
		buffers: make(map[Key]*Buffer),
	}
}

// Host returns the host the registry renders into
func (r *Registry) Host() host.Host {
	return r.host
}

// GetOrCreate returns the buffer for key, creating the host view on first
// use. created is true only for the call that created it.
func (r *Registry) GetOrCreate(key Key) (b *Buffer, created bool) {
	if b, ok := r.buffers[key]; ok {
		return b, false
	}
	view, _ := r.host.GetOrCreateView(key.String())
	b = &Buffer{key: key, view: view}
	r.buffers[key] = b
	r.order = append(r.order, key)
	r.metrics.RecordBufferCreated(key.Kind.String())
	return b, true
}

// Get looks up an existing buffer
func (r *Registry) Get(key Key) (*Buffer, bool) {
	b, ok := r.buffers[key]
	return b, ok
}

// Buffers returns every buffer in creation order
func (r *Registry) Buffers() []*Buffer {
	out := make([]*Buffer, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.buffers[k])
	}
	return out
}

// ChannelBuffers returns the materialized channel buffers of a guild
func (r *Registry) ChannelBuffers(guildID model.Snowflake) []*Buffer {
	var out []*Buffer
	for _, k := range r.order {
		if k.Kind == KeyChannel && k.GuildID == guildID && !guildID.IsZero() {
			out = append(out, r.buffers[k])
		}
	}
	return out
}

// CreateGuild materializes the buffer of a guild
func (r *Registry) CreateGuild(g model.Guild) *Buffer {
	b, _ := r.GetOrCreate(GuildKey(g.ID))
	v := b.view
	v.SetLocalvar("guild_name", g.Name)
	v.SetLocalvar("server", g.Name)
	v.SetShortName(g.Name)
	v.SetLocalvar("guildid", g.ID.String())
	v.SetLocalvar("type", "server")
	return b
}

// GuildChannel describes a guild channel buffer to materialize
type GuildChannel struct {
	Channel   model.Channel
	GuildName string
	Nick      string
	Muted     bool
}

// CreateChannel materializes a guild channel buffer. Channels whose kind
// does not render return nil.
func (r *Registry) CreateChannel(gc GuildChannel) *Buffer {
	c := gc.Channel
	variant := c.Kind.Variant()
	if variant != model.VariantGuild {
		return nil
	}

	b, _ := r.GetOrCreate(ChannelKey(c.GuildID, c.ID))
	b.variant = variant
	b.muted = gc.Muted

	v := b.view
	v.SetShortName(c.Name)
	v.SetLocalvar("channelid", c.ID.String())
	v.SetLocalvar("guildid", c.GuildID.String())
	v.SetLocalvar("channel", c.Name)
	v.SetLocalvar("guild_name", gc.GuildName)
	v.SetLocalvar("server", gc.GuildName)
	v.SetLocalvar("type", variant.String())
	v.SetLocalvar("nick", gc.Nick)
	v.SetTitle(channelTitle(c, gc.Muted))
	v.SetLocalvar("muted", muteFlag(gc.Muted))
	return b
}

// CreateDirect materializes a private or group conversation buffer
func (r *Registry) CreateDirect(c model.Channel, nick string) *Buffer {
	variant := c.Kind.Variant()
	if variant != model.VariantPrivate && variant != model.VariantGroup {
		return nil
	}

	b, _ := r.GetOrCreate(ChannelKey(0, c.ID))
	b.variant = variant

	v := b.view
	v.SetShortName(c.DisplayName())
	v.SetLocalvar("channelid", c.ID.String())
	v.SetLocalvar("channel", c.DisplayName())
	v.SetLocalvar("nick", nick)
	v.SetLocalvar("type", variant.String())
	v.SetLocalvar("muted", muteFlag(false))
	v.SetTitle(directTitle(c))
	return b
}

// CreatePins materializes the pinned messages buffer of a channel and
// switches to it
func (r *Registry) CreatePins(c model.Channel) *Buffer {
	b, _ := r.GetOrCreate(PinsKey(c.ID))
	v := b.view
	v.SwitchTo()
	v.SetTitle(fmt.Sprintf("Pinned messages in #%s", c.Name))
	v.SetFullName(fmt.Sprintf("Pinned messages in #%s", c.Name))
	v.SetShortName(fmt.Sprintf("#%s pins", c.Name))
	v.SetLocalvar("channelid", c.ID.String())
	if c.InGuild() {
		v.SetLocalvar("guildid", c.GuildID.String())
	}
	v.SetLocalvar("type", "pins")
	return b
}

func channelTitle(c model.Channel, muted bool) string {
	title := c.Name
	if c.Topic != "" {
		title = c.Name + " | " + c.Topic
	}
	if muted {
		title += " (muted)"
	}
	return title
}

func directTitle(c model.Channel) string {
	names := make([]string, 0, len(c.Recipients))
	for _, u := range c.Recipients {
		names = append(names, u.Name)
	}
	return "DM with " + strings.Join(names, ", ")
}

func muteFlag(muted bool) string {
	if muted {
		return "1"
	}
	return "0"
}
