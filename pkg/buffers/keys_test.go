package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRoundTrip(t *testing.T) {
	tests := []struct {
		key  Key
		name string
	}{
		{GuildKey(10), "guild.10"},
		{ChannelKey(10, 100), "channel.10.100"},
		{ChannelKey(0, 200), "channel.dm.200"},
		{PinsKey(100), "Pins.100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.key.String())
			parsed, err := ParseKey(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.key, parsed)
		})
	}
}

func TestParseKeyInvalid(t *testing.T) {
	for _, name := range []string{
		"",
		"guild",
		"guild.x",
		"guild.0",
		"channel.10",
		"channel.10.x",
		"channel.dm.0",
		"pins.10",
		"Pins.10.11",
		"server.10",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseKey(name)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestKeyIsDM(t *testing.T) {
	assert.True(t, ChannelKey(0, 5).IsDM())
	assert.False(t, ChannelKey(1, 5).IsDM())
	assert.False(t, PinsKey(5).IsDM())
}
