// Package model holds the remote chat platform's object graph as seen by
// the buffer core: guilds, channels, members, roles, presence and messages.
package model

import (
	"fmt"
	"strconv"
)

// Snowflake is a remote object id. Zero means "absent" wherever an id is
// optional (parent guild, last message).
type Snowflake uint64

// String returns the decimal form used in buffer keys and localvars
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// IsZero reports whether the id is unset
func (s Snowflake) IsZero() bool {
	return s == 0
}

// ParseSnowflake parses a decimal id
func ParseSnowflake(s string) (Snowflake, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return Snowflake(v), nil
}
