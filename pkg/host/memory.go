package host

import (
	"sort"
	"sync"

	"github.com/aeolun/guildbuf/pkg/model"
)

// Line is one message in a view with its read flag
type Line struct {
	Message model.Message
	Read    bool
}

// NickEntry is a nicklist entry together with its group ("" when flat)
type NickEntry struct {
	Nick  Nick
	Group string
}

// Group is a nicklist group
type Group struct {
	Name  string
	Color string
}

// ViewState is a copy of a view's contents
type ViewState struct {
	Key       string
	Title     string
	ShortName string
	FullName  string
	Localvars map[string]string
	Hotlist   Tier
	Lines     []Line
	Clears    int

	NicklistEnabled bool
	Groups          []Group     // sorted by name
	Nicks           []NickEntry // sorted by group then name
}

// Memory is an in-memory Host. All views share one lock so another
// goroutine (a renderer, a test) can take consistent snapshots.
type Memory struct {
	mu       sync.RWMutex
	views    map[string]*memoryView
	order    []string
	switched string
}

// NewMemory creates an empty in-memory host
func NewMemory() *Memory {
	return &Memory{views: make(map[string]*memoryView)}
}

type memoryView struct {
	host *Memory
	key  string

	title     string
	shortName string
	fullName  string
	localvars map[string]string
	hotlist   Tier
	lines     []Line
	clears    int

	nicklist bool
	groups   map[string]string
	nicks    map[string]NickEntry
}

// GetOrCreateView returns the view for key and whether it was created
func (h *Memory) GetOrCreateView(key string) (View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.views[key]; ok {
		return v, false
	}
	v := &memoryView{
		host:      h,
		key:       key,
		localvars: make(map[string]string),
		groups:    make(map[string]string),
		nicks:     make(map[string]NickEntry),
	}
	h.views[key] = v
	h.order = append(h.order, key)
	return v, true
}

// View looks up an existing view
func (h *Memory) View(key string) (View, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.views[key]
	if !ok {
		return nil, false
	}
	return v, true
}

// Keys returns view keys in creation order
func (h *Memory) Keys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.order...)
}

// Switched returns the key of the view last switched to
func (h *Memory) Switched() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.switched
}

// State copies the contents of a view
func (h *Memory) State(key string) (ViewState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.views[key]
	if !ok {
		return ViewState{}, false
	}

	s := ViewState{
		Key:             v.key,
		Title:           v.title,
		ShortName:       v.shortName,
		FullName:        v.fullName,
		Localvars:       make(map[string]string, len(v.localvars)),
		Hotlist:         v.hotlist,
		Lines:           append([]Line(nil), v.lines...),
		Clears:          v.clears,
		NicklistEnabled: v.nicklist,
	}
	for k, val := range v.localvars {
		s.Localvars[k] = val
	}
	for name, color := range v.groups {
		s.Groups = append(s.Groups, Group{Name: name, Color: color})
	}
	sort.Slice(s.Groups, func(i, j int) bool { return s.Groups[i].Name < s.Groups[j].Name })
	for _, e := range v.nicks {
		s.Nicks = append(s.Nicks, e)
	}
	sort.Slice(s.Nicks, func(i, j int) bool {
		if s.Nicks[i].Group != s.Nicks[j].Group {
			return s.Nicks[i].Group < s.Nicks[j].Group
		}
		return s.Nicks[i].Nick.Name < s.Nicks[j].Nick.Name
	})
	return s, true
}

func (v *memoryView) Key() string { return v.key }

func (v *memoryView) SetTitle(title string) {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.title = title
}

func (v *memoryView) SetShortName(name string) {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.shortName = name
}

func (v *memoryView) SetFullName(name string) {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.fullName = name
}

func (v *memoryView) SetLocalvar(name, value string) {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.localvars[name] = value
}

func (v *memoryView) Localvar(name string) (string, bool) {
	v.host.mu.RLock()
	defer v.host.mu.RUnlock()
	val, ok := v.localvars[name]
	return val, ok
}

func (v *memoryView) RaiseHotlist(tier Tier) {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	if tier > v.hotlist {
		v.hotlist = tier
	}
}

func (v *memoryView) ClearHotlist() {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.hotlist = TierNone
}

// MarkRead marks every line added so far as read
func (v *memoryView) MarkRead() {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	for i := range v.lines {
		v.lines[i].Read = true
	}
}

func (v *memoryView) Clear() {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.lines = nil
	v.clears++
}

func (v *memoryView) AddMessage(msg model.Message) {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.lines = append(v.lines, Line{Message: msg})
}

func (v *memoryView) EnableNicklist() {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.nicklist = true
}

func (v *memoryView) NicklistGroup(name, color string) {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	if _, ok := v.groups[name]; !ok {
		v.groups[name] = color
	}
}

func (v *memoryView) AddNick(group string, nick Nick) {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.nicks[nick.Name] = NickEntry{Nick: nick, Group: group}
}

func (v *memoryView) RemoveNick(name string) bool {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	if _, ok := v.nicks[name]; !ok {
		return false
	}
	delete(v.nicks, name)
	return true
}

func (v *memoryView) HasNick(name string) bool {
	v.host.mu.RLock()
	defer v.host.mu.RUnlock()
	_, ok := v.nicks[name]
	return ok
}

func (v *memoryView) SwitchTo() {
	v.host.mu.Lock()
	defer v.host.mu.Unlock()
	v.host.switched = v.key
}
