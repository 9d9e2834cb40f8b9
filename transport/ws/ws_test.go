package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tr := New(":0")
	tr.SetMessageHandler(func(_ context.Context, msg []byte) ([]byte, error) {
		if string(msg) == "quiet" {
			return nil, nil
		}
		return append([]byte("re:"), msg...), nil
	})

	srv := httptest.NewServer(tr.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpText, []byte("quiet")))
	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpText, []byte("hello")))

	// No reply is sent for "quiet", so the first frame answers "hello".
	data, op, err := wsutil.ReadServerData(conn)
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, op)
	assert.Equal(t, "re:hello", string(data))
}

func TestRunStopsOnCancel(t *testing.T) {
	tr := New("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tr.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
