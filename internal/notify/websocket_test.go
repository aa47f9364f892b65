package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T, secret string, frames chan<- []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+secret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		for {
			_, data, err := c.Read(r.Context())
			if err != nil {
				return
			}
			frames <- data
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketDialer_Emit(t *testing.T) {
	frames := make(chan []byte, 1)
	srv := newRelay(t, "relay-secret", frames)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := &WebSocketDialer{URL: srv.URL, Secret: "relay-secret"}
	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Emit(ctx, ChannelAlert, []byte(`{"id":1,"alert_type":"fire_alert"}`)))

	select {
	case data := <-frames:
		var env struct {
			Event string         `json:"event"`
			Data  map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, ChannelAlert, env.Event)
		assert.Equal(t, "fire_alert", env.Data["alert_type"])
	case <-ctx.Done():
		t.Fatal("relay received nothing")
	}
}

func TestWebSocketDialer_Unauthorized(t *testing.T) {
	srv := newRelay(t, "relay-secret", make(chan []byte, 1))

	d := &WebSocketDialer{URL: srv.URL, Secret: "wrong"}
	_, err := d.Dial(context.Background())
	require.Error(t, err)
}

func TestWebSocketDialer_NotifierReconnectsAfterClose(t *testing.T) {
	frames := make(chan []byte, 4)
	srv := newRelay(t, "k", frames)
	n := New(&WebSocketDialer{URL: srv.URL, Secret: "k"})
	ctx := context.Background()

	n.Start(ctx)
	require.Equal(t, StateConnected, n.State())
	n.NotifyAlert(ctx, testEvent())
	<-frames

	require.NoError(t, n.Close())
	n.NotifyAlert(ctx, testEvent())
	<-frames
	assert.Equal(t, StateConnected, n.State())
}
