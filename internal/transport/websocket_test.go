// SPDX-License-Identifier: MIT
package transport

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *WebSocketTransport {
	t.Helper()
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = wst.Close() })
	return wst
}

func dial(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketBroadcastsSymbolEvents(t *testing.T) {
	wst := newTestServer(t)
	a := dial(t, wst)
	b := dial(t, wst)
	require.Eventually(t, func() bool { return wst.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	sent := SymbolEvent{
		Time:        time.Unix(1700000000, 0).UTC(),
		Sequence:    7,
		Channel:     "mono",
		Symbol:      "A",
		Frequencies: []float64{1656.25, 687.5},
	}
	require.NoError(t, wst.Send(sent))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got SymbolEvent
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, sent, got)
	}
}

func TestWebSocketForgetsDisconnectedClients(t *testing.T) {
	wst := newTestServer(t)
	conn := dial(t, wst)
	require.Eventually(t, func() bool { return wst.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return wst.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketSendAfterClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)

	require.NoError(t, wst.Close())
	assert.Error(t, wst.Send("late"))
	assert.NoError(t, wst.Close(), "second close is a no-op")
}

func TestWebSocketListenError(t *testing.T) {
	wst := newTestServer(t)
	_, err := NewWebSocketTransport(wst.Addr())
	assert.ErrorContains(t, err, "failed to listen")
}
