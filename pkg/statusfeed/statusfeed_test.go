package statusfeed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"mp4recorder/pkg/reclog"
)

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/" + query
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	require.NoError(t, err)
	return conn
}

func TestHandlerStreamsEntries(t *testing.T) {
	logger := reclog.New()
	ts := httptest.NewServer(Handler(logger))
	defer ts.Close()

	conn := dial(t, ts, "")
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let the handler subscribe before publishing
	logger.Info().Src("recorder").Msgf("hello")

	var entry reclog.Entry
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&entry))
	require.Equal(t, "recorder", entry.Src)
	require.Equal(t, "hello", entry.Msg)
}

func TestHandlerFiltersBySource(t *testing.T) {
	logger := reclog.New()
	ts := httptest.NewServer(Handler(logger))
	defer ts.Close()

	conn := dial(t, ts, "?sources=recovery")
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	logger.Info().Src("recorder").Msgf("dropped")
	logger.Info().Src("recovery").Msgf("kept")

	var entry reclog.Entry
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&entry))
	require.Equal(t, "recovery", entry.Src)
	require.Equal(t, "kept", entry.Msg)
}
