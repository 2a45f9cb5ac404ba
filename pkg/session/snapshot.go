package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aeolun/guildbuf/pkg/model"
	_ "modernc.org/sqlite"
)

// Snapshot persists a cache to SQLite so a client can start from the last
// known state before the connection is up
type Snapshot struct {
	db *sql.DB
}

// OpenSnapshot opens or creates the snapshot database
func OpenSnapshot(path string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Snapshot{db: db}, nil
}

// Close closes the snapshot database
func (s *Snapshot) Close() error {
	return s.db.Close()
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS Meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS Guild (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS Role (
	guild_id INTEGER NOT NULL,
	id INTEGER NOT NULL,
	name TEXT NOT NULL,
	color INTEGER NOT NULL,
	hoist INTEGER NOT NULL,
	position INTEGER NOT NULL,
	permissions INTEGER NOT NULL,
	PRIMARY KEY (guild_id, id)
);
CREATE TABLE IF NOT EXISTS GuildSettings (
	guild_id INTEGER PRIMARY KEY,
	muted INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS ChannelOverride (
	guild_id INTEGER NOT NULL,
	channel_id INTEGER NOT NULL,
	muted INTEGER NOT NULL,
	PRIMARY KEY (guild_id, channel_id)
);
CREATE TABLE IF NOT EXISTS Channel (
	id INTEGER PRIMARY KEY,
	guild_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	topic TEXT NOT NULL,
	kind INTEGER NOT NULL,
	position INTEGER NOT NULL,
	last_message_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS Overwrite (
	channel_id INTEGER NOT NULL,
	ord INTEGER NOT NULL,
	target_id INTEGER NOT NULL,
	target_type INTEGER NOT NULL,
	allow INTEGER NOT NULL,
	deny INTEGER NOT NULL,
	PRIMARY KEY (channel_id, ord)
);
CREATE TABLE IF NOT EXISTS Recipient (
	channel_id INTEGER NOT NULL,
	ord INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	bot INTEGER NOT NULL,
	PRIMARY KEY (channel_id, ord)
);
CREATE TABLE IF NOT EXISTS Member (
	guild_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	bot INTEGER NOT NULL,
	nick TEXT NOT NULL,
	PRIMARY KEY (guild_id, user_id)
);
CREATE TABLE IF NOT EXISTS MemberRole (
	guild_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	ord INTEGER NOT NULL,
	role_id INTEGER NOT NULL,
	PRIMARY KEY (guild_id, user_id, ord)
);
CREATE TABLE IF NOT EXISTS Presence (
	user_id INTEGER PRIMARY KEY,
	status INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS ReadState (
	channel_id INTEGER PRIMARY KEY,
	last_message_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS Message (
	id INTEGER PRIMARY KEY,
	channel_id INTEGER NOT NULL,
	guild_id INTEGER NOT NULL,
	author_id INTEGER NOT NULL,
	author_name TEXT NOT NULL,
	author_bot INTEGER NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	pinned INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_message_channel ON Message(channel_id, id);
`

var snapshotTables = []string{
	"Meta", "Guild", "Role", "GuildSettings", "ChannelOverride", "Channel",
	"Overwrite", "Recipient", "Member", "MemberRole", "Presence", "ReadState", "Message",
}

// Snowflakes and permission sets use the full uint64 range; SQLite stores
// them as their int64 bit pattern.
func sqlID(id model.Snowflake) int64 { return int64(id) }

func fromSQL(v int64) model.Snowflake { return model.Snowflake(uint64(v)) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Save replaces the stored snapshot with d
func (s *Snapshot) Save(d Data) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, table := range snapshotTables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	positions := make([]string, 0, len(d.Positions))
	for _, id := range d.Positions {
		positions = append(positions, id.String())
	}
	meta := map[string]string{
		"user_id":         d.User.ID.String(),
		"user_name":       d.User.Name,
		"user_bot":        strconv.FormatBool(d.User.Bot),
		"guild_positions": strings.Join(positions, ","),
		"saved_at":        strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO Meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", k, err)
		}
	}

	for _, g := range d.Guilds {
		if _, err := tx.Exec(`INSERT INTO Guild (id, name, owner_id) VALUES (?, ?, ?)`,
			sqlID(g.ID), g.Name, sqlID(g.OwnerID)); err != nil {
			return fmt.Errorf("failed to write guild %s: %w", g.ID, err)
		}
		for _, r := range g.Roles {
			if _, err := tx.Exec(`
				INSERT INTO Role (guild_id, id, name, color, hoist, position, permissions)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, sqlID(g.ID), sqlID(r.ID), r.Name, r.Color, boolInt(r.Hoist), r.Position, int64(r.Permissions)); err != nil {
				return fmt.Errorf("failed to write role %s: %w", r.ID, err)
			}
		}
	}

	for guildID, gs := range d.Settings {
		if _, err := tx.Exec(`INSERT INTO GuildSettings (guild_id, muted) VALUES (?, ?)`,
			sqlID(guildID), boolInt(gs.Muted)); err != nil {
			return fmt.Errorf("failed to write settings of guild %s: %w", guildID, err)
		}
		for channelID, muted := range gs.ChannelOverrides {
			if _, err := tx.Exec(`INSERT INTO ChannelOverride (guild_id, channel_id, muted) VALUES (?, ?, ?)`,
				sqlID(guildID), sqlID(channelID), boolInt(muted)); err != nil {
				return fmt.Errorf("failed to write override of channel %s: %w", channelID, err)
			}
		}
	}

	for _, c := range d.Channels {
		if _, err := tx.Exec(`
			INSERT INTO Channel (id, guild_id, name, topic, kind, position, last_message_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, sqlID(c.ID), sqlID(c.GuildID), c.Name, c.Topic, int(c.Kind), c.Position, sqlID(c.LastMessageID)); err != nil {
			return fmt.Errorf("failed to write channel %s: %w", c.ID, err)
		}
		for i, ow := range c.Overwrites {
			if _, err := tx.Exec(`
				INSERT INTO Overwrite (channel_id, ord, target_id, target_type, allow, deny)
				VALUES (?, ?, ?, ?, ?, ?)
			`, sqlID(c.ID), i, sqlID(ow.ID), int(ow.Type), int64(ow.Allow), int64(ow.Deny)); err != nil {
				return fmt.Errorf("failed to write overwrite of channel %s: %w", c.ID, err)
			}
		}
		for i, u := range c.Recipients {
			if _, err := tx.Exec(`
				INSERT INTO Recipient (channel_id, ord, user_id, name, bot) VALUES (?, ?, ?, ?, ?)
			`, sqlID(c.ID), i, sqlID(u.ID), u.Name, boolInt(u.Bot)); err != nil {
				return fmt.Errorf("failed to write recipient of channel %s: %w", c.ID, err)
			}
		}
	}

	for _, m := range d.Members {
		if _, err := tx.Exec(`
			INSERT INTO Member (guild_id, user_id, name, bot, nick) VALUES (?, ?, ?, ?, ?)
		`, sqlID(m.GuildID), sqlID(m.User.ID), m.User.Name, boolInt(m.User.Bot), m.Nick); err != nil {
			return fmt.Errorf("failed to write member %s: %w", m.User.ID, err)
		}
		for i, roleID := range m.Roles {
			if _, err := tx.Exec(`
				INSERT INTO MemberRole (guild_id, user_id, ord, role_id) VALUES (?, ?, ?, ?)
			`, sqlID(m.GuildID), sqlID(m.User.ID), i, sqlID(roleID)); err != nil {
				return fmt.Errorf("failed to write roles of member %s: %w", m.User.ID, err)
			}
		}
	}

	for _, p := range d.Presences {
		if _, err := tx.Exec(`INSERT INTO Presence (user_id, status) VALUES (?, ?)`,
			sqlID(p.UserID), int(p.Status)); err != nil {
			return fmt.Errorf("failed to write presence %s: %w", p.UserID, err)
		}
	}
	for _, rs := range d.ReadStates {
		if _, err := tx.Exec(`INSERT INTO ReadState (channel_id, last_message_id) VALUES (?, ?)`,
			sqlID(rs.ChannelID), sqlID(rs.LastMessageID)); err != nil {
			return fmt.Errorf("failed to write read state %s: %w", rs.ChannelID, err)
		}
	}
	for _, msg := range d.Messages {
		if _, err := tx.Exec(`
			INSERT INTO Message (id, channel_id, guild_id, author_id, author_name, author_bot, content, created_at, pinned)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sqlID(msg.ID), sqlID(msg.ChannelID), sqlID(msg.GuildID), sqlID(msg.Author.ID), msg.Author.Name,
			boolInt(msg.Author.Bot), msg.Content, msg.Timestamp.UnixMilli(), boolInt(msg.Pinned)); err != nil {
			return fmt.Errorf("failed to write message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot
func (s *Snapshot) Load() (Data, error) {
	d := Data{Settings: make(map[model.Snowflake]model.GuildSettings)}

	meta, err := s.loadMeta()
	if err != nil {
		return Data{}, err
	}
	if id, err := model.ParseSnowflake(meta["user_id"]); err == nil {
		d.User.ID = id
	}
	d.User.Name = meta["user_name"]
	d.User.Bot = meta["user_bot"] == "true"
	if positions := meta["guild_positions"]; positions != "" {
		for _, p := range strings.Split(positions, ",") {
			id, err := model.ParseSnowflake(p)
			if err != nil {
				return Data{}, fmt.Errorf("corrupt guild positions: %w", err)
			}
			d.Positions = append(d.Positions, id)
		}
	}

	if d.Guilds, err = s.loadGuilds(); err != nil {
		return Data{}, err
	}
	if err := s.loadSettings(d.Settings); err != nil {
		return Data{}, err
	}
	if d.Channels, err = s.loadChannels(); err != nil {
		return Data{}, err
	}
	if d.Members, err = s.loadMembers(); err != nil {
		return Data{}, err
	}

	rows, err := s.db.Query(`SELECT user_id, status FROM Presence ORDER BY user_id`)
	if err != nil {
		return Data{}, fmt.Errorf("failed to load presences: %w", err)
	}
	for rows.Next() {
		var userID int64
		var status int
		if err := rows.Scan(&userID, &status); err != nil {
			rows.Close()
			return Data{}, fmt.Errorf("failed to scan presence: %w", err)
		}
		d.Presences = append(d.Presences, model.Presence{UserID: fromSQL(userID), Status: model.Status(status)})
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT channel_id, last_message_id FROM ReadState ORDER BY channel_id`)
	if err != nil {
		return Data{}, fmt.Errorf("failed to load read states: %w", err)
	}
	for rows.Next() {
		var channelID, lastID int64
		if err := rows.Scan(&channelID, &lastID); err != nil {
			rows.Close()
			return Data{}, fmt.Errorf("failed to scan read state: %w", err)
		}
		d.ReadStates = append(d.ReadStates, model.ReadState{ChannelID: fromSQL(channelID), LastMessageID: fromSQL(lastID)})
	}
	rows.Close()

	if d.Messages, err = s.loadMessages(); err != nil {
		return Data{}, err
	}
	return d, nil
}

func (s *Snapshot) loadMeta() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM Meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *Snapshot) loadGuilds() ([]model.Guild, error) {
	rows, err := s.db.Query(`SELECT id, name, owner_id FROM Guild ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load guilds: %w", err)
	}
	var guilds []model.Guild
	for rows.Next() {
		var id, owner int64
		var g model.Guild
		if err := rows.Scan(&id, &g.Name, &owner); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan guild: %w", err)
		}
		g.ID, g.OwnerID = fromSQL(id), fromSQL(owner)
		guilds = append(guilds, g)
	}
	rows.Close()

	for i := range guilds {
		rows, err := s.db.Query(`
			SELECT id, name, color, hoist, position, permissions
			FROM Role WHERE guild_id = ? ORDER BY position, id
		`, sqlID(guilds[i].ID))
		if err != nil {
			return nil, fmt.Errorf("failed to load roles: %w", err)
		}
		for rows.Next() {
			var id, perms int64
			var hoist int
			var r model.Role
			if err := rows.Scan(&id, &r.Name, &r.Color, &hoist, &r.Position, &perms); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan role: %w", err)
			}
			r.ID, r.Hoist, r.Permissions = fromSQL(id), hoist != 0, model.Permissions(uint64(perms))
			guilds[i].Roles = append(guilds[i].Roles, r)
		}
		rows.Close()
	}
	return guilds, nil
}

func (s *Snapshot) loadSettings(into map[model.Snowflake]model.GuildSettings) error {
	rows, err := s.db.Query(`SELECT guild_id, muted FROM GuildSettings`)
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}
	for rows.Next() {
		var guildID int64
		var muted int
		if err := rows.Scan(&guildID, &muted); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan guild settings: %w", err)
		}
		into[fromSQL(guildID)] = model.GuildSettings{Muted: muted != 0, ChannelOverrides: map[model.Snowflake]bool{}}
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT guild_id, channel_id, muted FROM ChannelOverride`)
	if err != nil {
		return fmt.Errorf("failed to load channel overrides: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var guildID, channelID int64
		var muted int
		if err := rows.Scan(&guildID, &channelID, &muted); err != nil {
			return fmt.Errorf("failed to scan channel override: %w", err)
		}
		gs, ok := into[fromSQL(guildID)]
		if !ok {
			gs = model.GuildSettings{ChannelOverrides: map[model.Snowflake]bool{}}
		}
		gs.ChannelOverrides[fromSQL(channelID)] = muted != 0
		into[fromSQL(guildID)] = gs
	}
	return rows.Err()
}

func (s *Snapshot) loadChannels() ([]model.Channel, error) {
	rows, err := s.db.Query(`
		SELECT id, guild_id, name, topic, kind, position, last_message_id FROM Channel ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load channels: %w", err)
	}
	var channels []model.Channel
	index := make(map[model.Snowflake]int)
	for rows.Next() {
		var id, guildID, lastID int64
		var kind int
		var c model.Channel
		if err := rows.Scan(&id, &guildID, &c.Name, &c.Topic, &kind, &c.Position, &lastID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		c.ID, c.GuildID, c.LastMessageID, c.Kind = fromSQL(id), fromSQL(guildID), fromSQL(lastID), model.ChannelKind(kind)
		index[c.ID] = len(channels)
		channels = append(channels, c)
	}
	rows.Close()

	rows, err = s.db.Query(`
		SELECT channel_id, target_id, target_type, allow, deny FROM Overwrite ORDER BY channel_id, ord
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load overwrites: %w", err)
	}
	for rows.Next() {
		var channelID, targetID, allow, deny int64
		var targetType int
		if err := rows.Scan(&channelID, &targetID, &targetType, &allow, &deny); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan overwrite: %w", err)
		}
		if i, ok := index[fromSQL(channelID)]; ok {
			channels[i].Overwrites = append(channels[i].Overwrites, model.Overwrite{
				ID:    fromSQL(targetID),
				Type:  model.OverwriteType(targetType),
				Allow: model.Permissions(uint64(allow)),
				Deny:  model.Permissions(uint64(deny)),
			})
		}
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT channel_id, user_id, name, bot FROM Recipient ORDER BY channel_id, ord`)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var channelID, userID int64
		var bot int
		var u model.User
		if err := rows.Scan(&channelID, &userID, &u.Name, &bot); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		u.ID, u.Bot = fromSQL(userID), bot != 0
		if i, ok := index[fromSQL(channelID)]; ok {
			channels[i].Recipients = append(channels[i].Recipients, u)
		}
	}
	return channels, rows.Err()
}

func (s *Snapshot) loadMembers() ([]model.Member, error) {
	rows, err := s.db.Query(`SELECT guild_id, user_id, name, bot, nick FROM Member ORDER BY guild_id, user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	type memberKey struct{ guild, user model.Snowflake }
	var members []model.Member
	index := make(map[memberKey]int)
	for rows.Next() {
		var guildID, userID int64
		var bot int
		var m model.Member
		if err := rows.Scan(&guildID, &userID, &m.User.Name, &bot, &m.Nick); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.GuildID, m.User.ID, m.User.Bot = fromSQL(guildID), fromSQL(userID), bot != 0
		index[memberKey{m.GuildID, m.User.ID}] = len(members)
		members = append(members, m)
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT guild_id, user_id, role_id FROM MemberRole ORDER BY guild_id, user_id, ord`)
	if err != nil {
		return nil, fmt.Errorf("failed to load member roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var guildID, userID, roleID int64
		if err := rows.Scan(&guildID, &userID, &roleID); err != nil {
			return nil, fmt.Errorf("failed to scan member role: %w", err)
		}
		if i, ok := index[memberKey{fromSQL(guildID), fromSQL(userID)}]; ok {
			members[i].Roles = append(members[i].Roles, fromSQL(roleID))
		}
	}
	return members, rows.Err()
}

func (s *Snapshot) loadMessages() ([]model.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, channel_id, guild_id, author_id, author_name, author_bot, content, created_at, pinned
		FROM Message ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var id, channelID, guildID, authorID, createdAt int64
		var bot, pinned int
		var msg model.Message
		if err := rows.Scan(&id, &channelID, &guildID, &authorID, &msg.Author.Name, &bot, &msg.Content, &createdAt, &pinned); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ID, msg.ChannelID, msg.GuildID, msg.Author.ID = fromSQL(id), fromSQL(channelID), fromSQL(guildID), fromSQL(authorID)
		msg.Author.Bot, msg.Pinned = bot != 0, pinned != 0
		msg.Timestamp = time.UnixMilli(createdAt)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// SaveSnapshot writes a cache to the snapshot at path
func SaveSnapshot(path string, m *Memory) error {
	snap, err := OpenSnapshot(path)
	if err != nil {
		return err
	}
	defer snap.Close()
	return snap.Save(m.Export())
}

// LoadSnapshot reads the snapshot at path into a new in-memory session
func LoadSnapshot(path string) (*Memory, error) {
	snap, err := OpenSnapshot(path)
	if err != nil {
		return nil, err
	}
	defer snap.Close()

	d, err := snap.Load()
	if err != nil {
		return nil, err
	}
	return NewMemoryFrom(d), nil
}
