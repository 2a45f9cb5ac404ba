package buffers

import (
	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
)

// HotlistTier is the tier unread messages raise for a channel variant
func HotlistTier(v model.Variant) host.Tier {
	switch v {
	case model.VariantPrivate, model.VariantGroup:
		return host.TierPrivate
	case model.VariantGuild:
		return host.TierMessage
	}
	return host.TierNone
}

// HasUnread reports whether the channel's last message differs from the
// remote read cursor. A missing read state counts as cursor zero.
func HasUnread(cache session.Cache, c model.Channel) bool {
	var cursor model.Snowflake
	if rs, ok := cache.ReadState(c.ID); ok {
		cursor = rs.LastMessageID
	}
	return cursor != c.LastMessageID
}

// applyInitialUnread raises the hotlist of a freshly created buffer
func applyInitialUnread(b *Buffer, hasUnread bool) {
	if hasUnread && !b.muted {
		b.view.RaiseHotlist(b.Tier())
	}
}

// Reconciliation summarizes one backfill walk
type Reconciliation struct {
	Appended   int
	Backlog    int  // messages marked read as they were appended
	Unread     int  // messages newer than the cursor
	MarkedRead bool // the whole page ended up read
}

// reconcile appends a page (newest first) oldest first and moves the read
// marker and hotlist to match the remote read state.
func reconcile(b *Buffer, page []model.Message, rs model.ReadState, haveReadState bool, lastMessageID model.Snowflake) Reconciliation {
	var out Reconciliation
	v := b.view

	if !haveReadState {
		for i := len(page) - 1; i >= 0; i-- {
			v.AddMessage(page[i])
			out.Appended++
		}
		return out
	}

	cursorInPage := false
	for _, msg := range page {
		if msg.ID == rs.LastMessageID {
			cursorInPage = true
			break
		}
	}

	if cursorInPage {
		backlog := true
		for i := len(page) - 1; i >= 0; i-- {
			msg := page[i]
			v.AddMessage(msg)
			out.Appended++
			if backlog {
				v.MarkRead()
				v.ClearHotlist()
				out.Backlog++
			} else {
				out.Unread++
				if !b.muted {
					v.RaiseHotlist(b.Tier())
				}
			}
			if msg.ID == rs.LastMessageID {
				backlog = false
			}
		}
		out.MarkedRead = out.Unread == 0
		return out
	}

	for i := len(page) - 1; i >= 0; i-- {
		v.AddMessage(page[i])
		out.Appended++
	}
	if rs.LastMessageID == lastMessageID {
		v.MarkRead()
		v.ClearHotlist()
		out.MarkedRead = true
	}
	return out
}
