package sse_test

import (
	"context"
	"testing"
	"time"

	"prompt_gallery/internal/lib/logger/handlers/slogdiscard"
	"prompt_gallery/internal/transport/http/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startHub(t *testing.T) (*sse.Hub, context.CancelFunc) {
	t.Helper()

	hub := sse.NewHub(slogdiscard.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	return hub, cancel
}

func receive(t *testing.T, ch chan []byte) []byte {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHub_Broadcast(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, cancel := startHub(t)
	defer func() {
		cancel()
		<-hub.Done()
	}()

	a := make(chan []byte, sse.ClientBuffer)
	b := make(chan []byte, sse.ClientBuffer)
	require.True(t, hub.Subscribe(a))
	require.True(t, hub.Subscribe(b))

	require.NoError(t, hub.PublishJSON(map[string]string{"status": "idle"}))

	assert.JSONEq(t, `{"status":"idle"}`, string(receive(t, a)))
	assert.JSONEq(t, `{"status":"idle"}`, string(receive(t, b)))

	hub.Unsubscribe(b)
	hub.Publish([]byte("second"))

	assert.Equal(t, "second", string(receive(t, a)))
	select {
	case msg := <-b:
		t.Fatalf("unsubscribed client got %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, cancel := startHub(t)
	defer func() {
		cancel()
		<-hub.Done()
	}()

	slow := make(chan []byte)
	fast := make(chan []byte, 1)
	require.True(t, hub.Subscribe(slow))
	require.True(t, hub.Subscribe(fast))

	hub.Publish([]byte("x"))

	assert.Equal(t, "x", string(receive(t, fast)))
}

func TestHub_Stopped(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, cancel := startHub(t)
	cancel()
	<-hub.Done()

	ch := make(chan []byte, 1)
	assert.False(t, hub.Subscribe(ch))

	// после остановки вызовы не блокируются
	hub.Unsubscribe(ch)
	hub.Publish([]byte("late"))
}
