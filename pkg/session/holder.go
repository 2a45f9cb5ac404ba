package session

import "sync/atomic"

// Holder carries the current session. It is attached when the connection
// comes up and detached on disconnect; operations that find it empty skip.
type Holder struct {
	current atomic.Pointer[attached]
}

type attached struct {
	session Session
}

// NewHolder returns a holder, optionally already attached
func NewHolder(s Session) *Holder {
	h := &Holder{}
	if s != nil {
		h.Connect(s)
	}
	return h
}

// Connect attaches a session, replacing any previous one
func (h *Holder) Connect(s Session) {
	h.current.Store(&attached{session: s})
}

// Disconnect detaches the current session
func (h *Holder) Disconnect() {
	h.current.Store(nil)
}

// Current returns the attached session, if any
func (h *Holder) Current() (Session, bool) {
	a := h.current.Load()
	if a == nil {
		return nil, false
	}
	return a.session, true
}
