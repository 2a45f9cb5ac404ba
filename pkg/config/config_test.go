package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file should be written")

	// The written file must parse back to the same defaults
	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[history]
fetch_count = 50

[nicklist]
use_presence = false

[autojoin]
channels = ["1", "1:2", ":3"]
watched = ["4:5"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.History.FetchCount)
	assert.False(t, cfg.Nicklist.UsePresence)
	assert.Equal(t, "info", cfg.Logging.Level, "missing sections keep defaults")

	items, err := cfg.AutojoinItems()
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{GuildID: 1},
		{GuildID: 1, ChannelID: 2},
		{ChannelID: 3},
	}, items)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[history\nfetch_count ="), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GUILDBUF_HISTORY_FETCH_COUNT", "100")
	t.Setenv("GUILDBUF_NICKLIST_USE_PRESENCE", "false")
	t.Setenv("GUILDBUF_AUTOJOIN_CHANNELS", " 1:2 , :3 ,")
	t.Setenv("GUILDBUF_LOGGING_LEVEL", "debug")

	cfg := applyEnvOverrides(DefaultConfig())
	assert.Equal(t, 100, cfg.History.FetchCount)
	assert.False(t, cfg.Nicklist.UsePresence)
	assert.Equal(t, []string{"1:2", ":3"}, cfg.Autojoin.Channels)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrideIgnoresInvalidCount(t *testing.T) {
	t.Setenv("GUILDBUF_HISTORY_FETCH_COUNT", "-3")
	cfg := applyEnvOverrides(DefaultConfig())
	assert.Equal(t, 25, cfg.History.FetchCount)
}

func TestParseItem(t *testing.T) {
	tests := []struct {
		in      string
		want    Item
		wantErr bool
	}{
		{in: "10", want: Item{GuildID: 10}},
		{in: "10:20", want: Item{GuildID: 10, ChannelID: 20}},
		{in: ":20", want: Item{ChannelID: 20}},
		{in: "", wantErr: true},
		{in: ":", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "10:x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseItem(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestItemIsGuild(t *testing.T) {
	assert.True(t, Item{GuildID: model.Snowflake(1)}.IsGuild())
	assert.False(t, Item{GuildID: 1, ChannelID: 2}.IsGuild())
}
