package main

import (
	"fmt"

	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
)

// memberOps is the part of buffers.Manager that member updates drive
type memberOps interface {
	UpdateMember(old *model.Member, updated model.Member) <-chan struct{}
	UpdateSelfNick() <-chan struct{}
}

// reloadMembers re-reads the members and current user of a snapshot into the
// live cache and feeds every change through the member update handlers, the
// way gateway member events would. It returns a channel closed once the open
// buffers are patched and the number of renames seen.
func reloadMembers(mem *session.Memory, path string, ops memberOps) (<-chan struct{}, int, error) {
	fresh, err := session.LoadSnapshot(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reload members: %w", err)
	}
	data := fresh.Export()

	var pending []<-chan struct{}
	renamed := 0

	current := mem.CurrentUser()
	if data.User.ID == current.ID && data.User.Name != current.Name {
		mem.SetCurrentUser(data.User)
		pending = append(pending, ops.UpdateSelfNick())
		renamed++
	}

	for _, updated := range data.Members {
		var old *model.Member
		if prior, ok := mem.Member(updated.GuildID, updated.User.ID); ok {
			old = &prior
			if prior.DisplayName() != updated.DisplayName() {
				renamed++
			}
		}
		mem.UpsertMember(updated)
		pending = append(pending, ops.UpdateMember(old, updated))
	}
	return allDone(pending), renamed, nil
}

// allDone closes once every input has closed
func allDone(chs []<-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for _, ch := range chs {
			<-ch
		}
		close(done)
	}()
	return done
}
