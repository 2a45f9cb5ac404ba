package main

import (
	"fmt"
	"time"

	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/aeolun/guildbuf/pkg/session"
	"github.com/spf13/cobra"
)

func newDemoSnapshotCmd() *cobra.Command {
	var renamed bool
	cmd := &cobra.Command{
		Use:   "demo-snapshot <path>",
		Short: "Write a small example session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := demoSession(time.Now())
			if renamed {
				renameDemoMembers(s)
			}
			if err := session.SaveSnapshot(args[0], s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote demo snapshot to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&renamed, "renamed", false, "write the snapshot after a round of member renames (reload it with 'm' in the viewer)")
	return cmd
}

// renameDemoMembers applies the renames a running viewer picks up on reload:
// ada changes nickname, grace gains one and the current user is renamed
func renameDemoMembers(s *session.Memory) {
	const gophers model.Snowflake = 100
	if ada, ok := s.Member(gophers, 2); ok {
		ada.Nick = "Ada Lovelace"
		s.UpsertMember(ada)
	}
	if grace, ok := s.Member(gophers, 4); ok {
		grace.Nick = "Grace H."
		s.UpsertMember(grace)
	}
	me := s.CurrentUser()
	me.Name = "gopher"
	s.SetCurrentUser(me)
}

// demoSession builds two guilds, a handful of channels and conversations
func demoSession(now time.Time) *session.Memory {
	const (
		me    model.Snowflake = 1
		ada   model.Snowflake = 2
		linus model.Snowflake = 3
		grace model.Snowflake = 4
		ci    model.Snowflake = 5

		gophers model.Snowflake = 100
		rustace model.Snowflake = 200
	)
	read := model.PermReadMessages | model.PermReadMessageHistory | model.PermSendMessages

	s := session.NewMemory(model.User{ID: me, Name: "me"})
	s.SetGuildPositions([]model.Snowflake{gophers})

	s.AddGuild(model.Guild{ID: gophers, Name: "Gophers", OwnerID: ada, Roles: []model.Role{
		{ID: gophers, Name: "@everyone", Permissions: read},
		{ID: 101, Name: "Maintainers", Color: 0x00add8, Hoist: true, Position: 10},
		{ID: 102, Name: "Contributors", Color: 0xce3262, Hoist: true, Position: 5},
	}})
	s.AddGuild(model.Guild{ID: rustace, Name: "Crustaceans", OwnerID: linus, Roles: []model.Role{
		{ID: rustace, Name: "@everyone", Permissions: read},
	}})
	s.SetGuildSettings(rustace, model.GuildSettings{Muted: true})

	s.AddChannel(model.Channel{ID: 110, GuildID: gophers, Name: "Text", Kind: model.KindCategory})
	s.AddChannel(model.Channel{ID: 111, GuildID: gophers, Name: "general", Topic: "All things Go", Kind: model.KindGuildText, Position: 1})
	s.AddChannel(model.Channel{ID: 112, GuildID: gophers, Name: "announcements", Kind: model.KindNews, Position: 0})
	s.AddChannel(model.Channel{ID: 113, GuildID: gophers, Name: "maintainers", Kind: model.KindGuildText, Position: 2,
		Overwrites: []model.Overwrite{
			{ID: gophers, Type: model.OverwriteRole, Deny: model.PermReadMessages},
			{ID: 101, Type: model.OverwriteRole, Allow: model.PermReadMessages},
		}})
	s.AddChannel(model.Channel{ID: 114, GuildID: gophers, Name: "Voice", Kind: model.KindVoice, Position: 3})
	s.AddChannel(model.Channel{ID: 211, GuildID: rustace, Name: "lounge", Kind: model.KindGuildText})
	s.AddChannel(model.Channel{ID: 300, Kind: model.KindPrivate, Recipients: []model.User{{ID: grace, Name: "grace"}}})
	s.AddChannel(model.Channel{ID: 301, Kind: model.KindGroup, Recipients: []model.User{{ID: grace, Name: "grace"}, {ID: ada, Name: "ada"}}})

	s.UpsertMember(model.Member{GuildID: gophers, User: model.User{ID: me, Name: "me"}})
	s.UpsertMember(model.Member{GuildID: gophers, User: model.User{ID: ada, Name: "ada"}, Nick: "Ada", Roles: []model.Snowflake{101}})
	s.UpsertMember(model.Member{GuildID: gophers, User: model.User{ID: grace, Name: "grace"}, Roles: []model.Snowflake{102}})
	s.UpsertMember(model.Member{GuildID: gophers, User: model.User{ID: ci, Name: "ci", Bot: true}})
	s.UpsertMember(model.Member{GuildID: rustace, User: model.User{ID: me, Name: "me"}})
	s.UpsertMember(model.Member{GuildID: rustace, User: model.User{ID: linus, Name: "linus"}})

	s.SetPresence(model.Presence{UserID: ada, Status: model.StatusOnline})
	s.SetPresence(model.Presence{UserID: grace, Status: model.StatusIdle})
	s.SetPresence(model.Presence{UserID: linus, Status: model.StatusOffline})

	type line struct {
		author  model.User
		content string
	}
	users := map[model.Snowflake]model.User{
		ada: {ID: ada, Name: "ada"}, grace: {ID: grace, Name: "grace"},
		ci: {ID: ci, Name: "ci", Bot: true}, linus: {ID: linus, Name: "linus"},
		// Not in any member cache; displaying the channel requests it
		42: {ID: 42, Name: "visitor"},
	}
	next := model.Snowflake(1000)
	add := func(channel, guild model.Snowflake, pinned bool, lines ...line) {
		for _, l := range lines {
			s.AddMessages(model.Message{
				ID:        next,
				ChannelID: channel,
				GuildID:   guild,
				Author:    l.author,
				Content:   l.content,
				Timestamp: now.Add(time.Duration(int(next)-1100) * time.Minute),
				Pinned:    pinned,
			})
			next++
		}
	}

	add(112, gophers, true, line{users[ada], "Go 1.24 is out"})
	add(111, gophers, false,
		line{users[grace], "morning all"},
		line{users[ada], "has anyone tried the new iterator functions?"},
		line{users[42], "hi, first time here"},
	)
	add(111, gophers, true, line{users[ada], "please read the contribution guide before opening a PR"})
	add(111, gophers, false,
		line{users[ci], "build #412 passed"},
		line{users[grace], "nice"},
	)
	add(113, gophers, false, line{users[ada], "release checklist is up"})
	add(211, rustace, false, line{users[linus], "borrow checker says no"})
	add(300, 0, false, line{users[grace], "got a minute?"})
	add(301, 0, false, line{users[ada], "lunch?"}, line{users[grace], "sure"})

	// general read up to the pinned message; announcements fully read
	s.SetReadState(model.ReadState{ChannelID: 111, LastMessageID: 1004})
	s.SetReadState(model.ReadState{ChannelID: 112, LastMessageID: 1000})
	s.SetReadState(model.ReadState{ChannelID: 300, LastMessageID: 0})
	return s
}
