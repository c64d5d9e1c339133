package arenaclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/park285/duel-arena/pkg/dueldto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Session is one websocket connection to the arena gateway.
type Session struct {
	conn *websocket.Conn
}

// Dial opens a gateway session. headers may be nil.
func Dial(ctx context.Context, wsURL string, headers HeaderProvider) (*Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	h := http.Header{}
	if headers != nil {
		for k, v := range headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				h.Set(k, v)
			}
		}
	}
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      h,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return &Session{conn: conn}, nil
}

func (s *Session) Send(ctx context.Context, f dueldto.ClientFrame) error {
	return wsjson.Write(ctx, s.conn, f)
}

// Enter identifies the session and waits for the entered or invalid answer.
func (s *Session) Enter(ctx context.Context, playerID string) (*dueldto.Player, error) {
	if err := s.Send(ctx, dueldto.ClientFrame{Type: dueldto.FrameEnter, PlayerID: playerID}); err != nil {
		return nil, err
	}
	for {
		f, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		switch f.Type {
		case dueldto.FrameEntered:
			return f.Player, nil
		case dueldto.FrameInvalid:
			return nil, &APIError{Code: f.Code, Message: f.Message}
		}
	}
}

// Next blocks for the next server frame.
func (s *Session) Next(ctx context.Context) (dueldto.ServerFrame, error) {
	var f dueldto.ServerFrame
	err := wsjson.Read(ctx, s.conn, &f)
	return f, err
}

func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
