package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/gorilla/websocket"
)

// OpRequestMembers is the gateway opcode for a guild member lookup
const OpRequestMembers = 8

// GatewayRequester sends member lookups over a gateway websocket
type GatewayRequester struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

type gatewayFrame struct {
	Op   int `json:"op"`
	Data any `json:"d"`
}

type requestMembersPayload struct {
	GuildID string   `json:"guild_id"`
	UserIDs []string `json:"user_ids"`
	Nonce   string   `json:"nonce"`
}

// DialGateway connects to the gateway at url
func DialGateway(ctx context.Context, url string) (*GatewayRequester, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gateway: %w", err)
	}
	return NewGatewayRequester(conn), nil
}

// NewGatewayRequester wraps an established gateway connection
func NewGatewayRequester(conn *websocket.Conn) *GatewayRequester {
	return &GatewayRequester{conn: conn}
}

// RequestMembers sends one member lookup frame. Ids are encoded as strings.
func (g *GatewayRequester) RequestMembers(guildID model.Snowflake, userIDs []model.Snowflake, nonce string) error {
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}
	data, err := json.Marshal(gatewayFrame{
		Op: OpRequestMembers,
		Data: requestMembersPayload{
			GuildID: guildID.String(),
			UserIDs: ids,
			Nonce:   nonce,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode member request: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return ErrNotConnected
	}
	if err := g.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send member request: %w", err)
	}
	return nil
}

// Close closes the gateway connection
func (g *GatewayRequester) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	_ = g.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := g.conn.Close()
	g.conn = nil
	return err
}
