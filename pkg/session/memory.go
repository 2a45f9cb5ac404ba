package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aeolun/guildbuf/pkg/model"
)

// FetchOp names a remote fetch for error injection and hooks
type FetchOp string

const (
	OpGuilds       FetchOp = "guilds"
	OpChannels     FetchOp = "channels"
	OpFetchChannel FetchOp = "channel"
	OpMessages     FetchOp = "messages"
	OpPins         FetchOp = "pins"
)

// MemberRequest records one emitted member lookup
type MemberRequest struct {
	GuildID model.Snowflake
	UserIDs []model.Snowflake
	Nonce   string
}

// Data is a plain copy of a cache's contents
type Data struct {
	User       model.User
	Positions  []model.Snowflake
	Guilds     []model.Guild
	Settings   map[model.Snowflake]model.GuildSettings
	Channels   []model.Channel
	Members    []model.Member
	Presences  []model.Presence
	ReadStates []model.ReadState
	Messages   []model.Message
}

// Memory is an in-memory Session. The connection layer (or a test) owns its
// mutation; the buffer core only reads it.
type Memory struct {
	mu sync.RWMutex

	user      model.User
	positions []model.Snowflake
	guilds    map[model.Snowflake]model.Guild
	settings  map[model.Snowflake]model.GuildSettings
	channels  map[model.Snowflake]model.Channel
	members   map[model.Snowflake]map[model.Snowflake]model.Member // guildID -> userID -> member
	presences map[model.Snowflake]model.Presence
	readState map[model.Snowflake]model.ReadState
	messages  map[model.Snowflake][]model.Message // channelID -> ascending by id

	// Error injection and fetch hooks
	fetchErrs map[fetchKey]error
	fetchHook func(op FetchOp, id model.Snowflake)

	requests  []MemberRequest
	requester MemberRequester
}

type fetchKey struct {
	op FetchOp
	id model.Snowflake
}

// NewMemory creates an empty in-memory session for the given user
func NewMemory(user model.User) *Memory {
	return &Memory{
		user:      user,
		guilds:    make(map[model.Snowflake]model.Guild),
		settings:  make(map[model.Snowflake]model.GuildSettings),
		channels:  make(map[model.Snowflake]model.Channel),
		members:   make(map[model.Snowflake]map[model.Snowflake]model.Member),
		presences: make(map[model.Snowflake]model.Presence),
		readState: make(map[model.Snowflake]model.ReadState),
		messages:  make(map[model.Snowflake][]model.Message),
		fetchErrs: make(map[fetchKey]error),
	}
}

// NewMemoryFrom creates an in-memory session holding a copy of d
func NewMemoryFrom(d Data) *Memory {
	m := NewMemory(d.User)
	m.SetGuildPositions(d.Positions)
	for _, g := range d.Guilds {
		m.AddGuild(g)
	}
	for id, s := range d.Settings {
		m.SetGuildSettings(id, s)
	}
	for _, c := range d.Channels {
		m.AddChannel(c)
	}
	for _, mem := range d.Members {
		m.UpsertMember(mem)
	}
	for _, p := range d.Presences {
		m.SetPresence(p)
	}
	for _, rs := range d.ReadStates {
		m.SetReadState(rs)
	}
	m.AddMessages(d.Messages...)
	return m
}

// Export copies the cache contents in a deterministic order
func (m *Memory) Export() Data {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d := Data{
		User:      m.user,
		Positions: append([]model.Snowflake(nil), m.positions...),
		Settings:  make(map[model.Snowflake]model.GuildSettings, len(m.settings)),
	}
	for _, g := range m.guilds {
		d.Guilds = append(d.Guilds, g)
	}
	sort.Slice(d.Guilds, func(i, j int) bool { return d.Guilds[i].ID < d.Guilds[j].ID })
	for id, s := range m.settings {
		d.Settings[id] = s
	}
	for _, c := range m.channels {
		d.Channels = append(d.Channels, c)
	}
	sort.Slice(d.Channels, func(i, j int) bool { return d.Channels[i].ID < d.Channels[j].ID })
	for _, byUser := range m.members {
		for _, mem := range byUser {
			d.Members = append(d.Members, mem)
		}
	}
	sort.Slice(d.Members, func(i, j int) bool {
		if d.Members[i].GuildID != d.Members[j].GuildID {
			return d.Members[i].GuildID < d.Members[j].GuildID
		}
		return d.Members[i].User.ID < d.Members[j].User.ID
	})
	for _, p := range m.presences {
		d.Presences = append(d.Presences, p)
	}
	sort.Slice(d.Presences, func(i, j int) bool { return d.Presences[i].UserID < d.Presences[j].UserID })
	for _, rs := range m.readState {
		d.ReadStates = append(d.ReadStates, rs)
	}
	sort.Slice(d.ReadStates, func(i, j int) bool { return d.ReadStates[i].ChannelID < d.ReadStates[j].ChannelID })
	for _, msgs := range m.messages {
		d.Messages = append(d.Messages, msgs...)
	}
	sort.Slice(d.Messages, func(i, j int) bool { return d.Messages[i].ID < d.Messages[j].ID })
	return d
}

// SetCurrentUser replaces the current user, after a rename
func (m *Memory) SetCurrentUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
}

// SetGuildPositions sets the user's ordered guild list
func (m *Memory) SetGuildPositions(ids []model.Snowflake) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append([]model.Snowflake(nil), ids...)
}

// AddGuild adds or replaces a guild
func (m *Memory) AddGuild(g model.Guild) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[g.ID] = g
}

// SetGuildSettings sets the current user's settings for a guild
func (m *Memory) SetGuildSettings(guildID model.Snowflake, s model.GuildSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[guildID] = s
}

// AddChannel adds or replaces a channel
func (m *Memory) AddChannel(c model.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[c.ID] = c
}

// UpsertMember adds or replaces a guild member
func (m *Memory) UpsertMember(mem model.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser, ok := m.members[mem.GuildID]
	if !ok {
		byUser = make(map[model.Snowflake]model.Member)
		m.members[mem.GuildID] = byUser
	}
	byUser[mem.User.ID] = mem
}

// SetPresence records a user's presence
func (m *Memory) SetPresence(p model.Presence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presences[p.UserID] = p
}

// SetReadState records the remote read cursor of a channel
func (m *Memory) SetReadState(rs model.ReadState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readState[rs.ChannelID] = rs
}

// AddMessages stores messages, keeping each channel sorted by id, and
// advances the channel's last message id
func (m *Memory) AddMessages(msgs ...model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	touched := make(map[model.Snowflake]bool)
	for _, msg := range msgs {
		m.messages[msg.ChannelID] = append(m.messages[msg.ChannelID], msg)
		touched[msg.ChannelID] = true
	}
	for id := range touched {
		list := m.messages[id]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		if c, ok := m.channels[id]; ok && list[len(list)-1].ID > c.LastMessageID {
			c.LastMessageID = list[len(list)-1].ID
			m.channels[id] = c
		}
	}
}

// SetFetchError makes a fetch fail. A zero id applies to Guilds.
func (m *Memory) SetFetchError(op FetchOp, id model.Snowflake, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fetchErrs, fetchKey{op, id})
		return
	}
	m.fetchErrs[fetchKey{op, id}] = err
}

// SetFetchHook installs a function called at the start of every fetch,
// outside the lock, on the fetching goroutine
func (m *Memory) SetFetchHook(hook func(op FetchOp, id model.Snowflake)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchHook = hook
}

// SetRequester forwards member requests to r in addition to recording them
func (m *Memory) SetRequester(r MemberRequester) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requester = r
}

// Requests returns the member requests emitted so far
func (m *Memory) Requests() []MemberRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MemberRequest(nil), m.requests...)
}

// CurrentUser returns the connected user
func (m *Memory) CurrentUser() model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// GuildPositions returns the user's ordered guild list
func (m *Memory) GuildPositions() []model.Snowflake {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Snowflake(nil), m.positions...)
}

// Guild returns a cached guild
func (m *Memory) Guild(id model.Snowflake) (model.Guild, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guilds[id]
	return g, ok
}

// GuildSettings returns the user's settings for a guild
func (m *Memory) GuildSettings(id model.Snowflake) (model.GuildSettings, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[id]
	return s, ok
}

// Channel returns a cached channel
func (m *Memory) Channel(id model.Snowflake) (model.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.channels[id]
	return c, ok
}

// Member returns a cached guild member
func (m *Memory) Member(guildID, userID model.Snowflake) (model.Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[guildID][userID]
	return mem, ok
}

// Members returns every cached member of a guild, ordered by user id
func (m *Memory) Members(guildID model.Snowflake) []model.Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Member, 0, len(m.members[guildID]))
	for _, mem := range m.members[guildID] {
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out
}

// Presence returns a user's presence
func (m *Memory) Presence(userID model.Snowflake) (model.Presence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.presences[userID]
	return p, ok
}

// ReadState returns the remote read cursor of a channel
func (m *Memory) ReadState(channelID model.Snowflake) (model.ReadState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.readState[channelID]
	return rs, ok
}

// beginFetch runs the hook and returns any injected error
func (m *Memory) beginFetch(ctx context.Context, op FetchOp, id model.Snowflake) error {
	m.mu.RLock()
	hook := m.fetchHook
	err := m.fetchErrs[fetchKey{op, id}]
	m.mu.RUnlock()

	if hook != nil {
		hook(op, id)
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Guilds returns every guild the user is in, in no particular order
func (m *Memory) Guilds(ctx context.Context) ([]model.Guild, error) {
	if err := m.beginFetch(ctx, OpGuilds, 0); err != nil {
		return nil, fmt.Errorf("fetch guilds: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Guild, 0, len(m.guilds))
	for _, g := range m.guilds {
		out = append(out, g)
	}
	return out, nil
}

// Channels returns the channels of a guild, in no particular order
func (m *Memory) Channels(ctx context.Context, guildID model.Snowflake) ([]model.Channel, error) {
	if err := m.beginFetch(ctx, OpChannels, guildID); err != nil {
		return nil, fmt.Errorf("fetch channels of guild %s: %w", guildID, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.guilds[guildID]; !ok {
		return nil, fmt.Errorf("guild %s: %w", guildID, ErrNotFound)
	}
	var out []model.Channel
	for _, c := range m.channels {
		if c.GuildID == guildID {
			out = append(out, c)
		}
	}
	return out, nil
}

// FetchChannel returns a single channel
func (m *Memory) FetchChannel(ctx context.Context, channelID model.Snowflake) (model.Channel, error) {
	if err := m.beginFetch(ctx, OpFetchChannel, channelID); err != nil {
		return model.Channel{}, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}
	c, ok := m.Channel(channelID)
	if !ok {
		return model.Channel{}, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	return c, nil
}

// Messages returns up to limit of the most recent messages, newest first.
// A limit below zero is treated as zero.
func (m *Memory) Messages(ctx context.Context, channelID model.Snowflake, limit int) ([]model.Message, error) {
	limit = max(limit, 0)
	if err := m.beginFetch(ctx, OpMessages, channelID); err != nil {
		return nil, fmt.Errorf("fetch messages of channel %s: %w", channelID, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.messages[channelID]
	out := make([]model.Message, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Pins returns every pinned message, newest first
func (m *Memory) Pins(ctx context.Context, channelID model.Snowflake) ([]model.Message, error) {
	if err := m.beginFetch(ctx, OpPins, channelID); err != nil {
		return nil, fmt.Errorf("fetch pins of channel %s: %w", channelID, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.messages[channelID]
	var out []model.Message
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Pinned {
			out = append(out, list[i])
		}
	}
	return out, nil
}

// RequestMembers records the request and forwards it to the attached
// requester, if any
func (m *Memory) RequestMembers(guildID model.Snowflake, userIDs []model.Snowflake, nonce string) error {
	m.mu.Lock()
	m.requests = append(m.requests, MemberRequest{
		GuildID: guildID,
		UserIDs: append([]model.Snowflake(nil), userIDs...),
		Nonce:   nonce,
	})
	requester := m.requester
	m.mu.Unlock()

	if requester != nil {
		return requester.RequestMembers(guildID, userIDs, nonce)
	}
	return nil
}
