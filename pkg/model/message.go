package model

import "time"

// Message is a single chat message
type Message struct {
	ID        Snowflake
	ChannelID Snowflake
	GuildID   Snowflake
	Author    User
	Content   string
	Timestamp time.Time
	Pinned    bool
}

// ReadState is the remote read cursor for one channel
type ReadState struct {
	ChannelID     Snowflake
	LastMessageID Snowflake
}
