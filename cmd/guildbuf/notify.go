package main

import (
	"sync"

	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// notifyFunc shows a desktop notification
type notifyFunc func(title, body string) error

func desktopNotify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// notifyingHost raises a desktop notification the first time a view's
// hotlist reaches the private tier, and again only after it was cleared
type notifyingHost struct {
	host.Host
	notify notifyFunc
	logger zerolog.Logger

	mu       sync.Mutex
	notified map[string]bool
}

func newNotifyingHost(h host.Host, notify notifyFunc, logger zerolog.Logger) *notifyingHost {
	return &notifyingHost{
		Host:     h,
		notify:   notify,
		logger:   logger,
		notified: make(map[string]bool),
	}
}

func (h *notifyingHost) GetOrCreateView(key string) (host.View, bool) {
	v, created := h.Host.GetOrCreateView(key)
	return &notifyingView{View: v, host: h}, created
}

func (h *notifyingHost) View(key string) (host.View, bool) {
	v, ok := h.Host.View(key)
	if !ok {
		return nil, false
	}
	return &notifyingView{View: v, host: h}, true
}

type notifyingView struct {
	host.View
	host *notifyingHost
}

func (v *notifyingView) RaiseHotlist(tier host.Tier) {
	v.View.RaiseHotlist(tier)
	if tier != host.TierPrivate {
		return
	}

	h := v.host
	h.mu.Lock()
	already := h.notified[v.Key()]
	h.notified[v.Key()] = true
	h.mu.Unlock()
	if already {
		return
	}

	name, _ := v.Localvar("channel")
	if name == "" {
		name = v.Key()
	}
	if err := h.notify("guildbuf", "New message in "+name); err != nil {
		h.logger.Debug().Err(err).Msg("failed to send desktop notification")
	}
}

func (v *notifyingView) ClearHotlist() {
	v.View.ClearHotlist()
	v.host.mu.Lock()
	delete(v.host.notified, v.Key())
	v.host.mu.Unlock()
}
