package campusclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
)

// NewestFirst orders lost and found posts the way the list endpoint does.
func NewestFirst(a, b types.LostItem) bool { return a.CreatedAt.After(b.CreatedAt) }

// SoonestFirst orders events the way the list endpoint does.
func SoonestFirst(a, b types.Event) bool { return a.EventDate.Before(b.EventDate) }

// Watch keeps mirror equal to the server's copy of mirror.Table().
//
// It subscribes first and then calls load to seed the mirror, so no change
// between the two is lost; replays are harmless because merges are
// upserts. It returns nil when ctx is cancelled, ErrEvicted when the
// server dropped the stream, or the connection error.
func Watch[T realtime.Keyed](ctx context.Context, c *Client, mirror *realtime.Mirror[T], load func(context.Context) ([]T, error)) error {
	conn, err := c.dial(ctx, mirror.Table())
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	rows, err := load(ctx)
	if err != nil {
		return fmt.Errorf("campusclient: load %s: %w", mirror.Table(), err)
	}
	mirror.Reset(rows)

	for {
		var change realtime.Change
		if err := conn.ReadJSON(&change); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == CloseEvicted {
				return ErrEvicted
			}
			return fmt.Errorf("campusclient: read %s feed: %w", mirror.Table(), err)
		}

		if err := mirror.Apply(change); err != nil {
			c.log.Warn("skipping change", zap.String("table", change.Table), zap.Error(err))
		}
	}
}

func (c *Client) dial(ctx context.Context, table string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/realtime/v1/" + table

	header := http.Header{}
	if token := c.bearer(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "realtime subscribe refused"}
		}
		return nil, fmt.Errorf("campusclient: dial %s: %w", table, err)
	}
	return conn, nil
}
