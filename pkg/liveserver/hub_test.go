package liveserver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.latest)
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := runHub(t)

	client := NewClient("test-1")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubBroadcast(t *testing.T) {
	hub := runHub(t)

	client := NewClient("test-1")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	msg := NewMessage(TypeRecommendation, map[string]interface{}{"longDelta": -1000.0})
	hub.Broadcast(msg)

	select {
	case received := <-client.GetSendChan():
		assert.Equal(t, msg, received)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
	}
}

func TestHubBroadcastToMultipleClients(t *testing.T) {
	hub := runHub(t)

	clients := make([]*Client, 5)
	for i := range clients {
		clients[i] = NewClient(fmt.Sprintf("client-%d", i))
		hub.Register(clients[i])
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 5, hub.ClientCount())

	hub.Broadcast(NewMessage(TypePrice, "42000"))

	for _, c := range clients {
		select {
		case received := <-c.GetSendChan():
			assert.Equal(t, TypePrice, received.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client %s did not receive message", c.id)
		}
	}
}

func TestHubReplaysLatestOnRegister(t *testing.T) {
	hub := runHub(t)

	hub.Broadcast(NewMessage(TypeRecommendation, "first"))
	hub.Broadcast(NewMessage(TypePrice, "p1"))
	hub.Broadcast(NewMessage(TypeRecommendation, "second"))
	time.Sleep(20 * time.Millisecond)

	latest, ok := hub.Latest(TypeRecommendation)
	require.True(t, ok)
	assert.Equal(t, "second", latest.Data)

	client := NewClient("late")
	hub.Register(client)

	var got []Message
	for i := 0; i < 2; i++ {
		select {
		case m := <-client.GetSendChan():
			got = append(got, m)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("snapshot not replayed")
		}
	}
	assert.Equal(t, []Message{
		NewMessage(TypeRecommendation, "second"),
		NewMessage(TypePrice, "p1"),
	}, got)
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := NewClient("test-1")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	cancel()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 0, hub.ClientCount())
	_, ok := <-client.GetSendChan()
	assert.False(t, ok, "client channel should be closed")

	// calls after shutdown must not block
	late := NewClient("late")
	hub.Register(late)
	hub.Unregister(late)
	assert.False(t, late.Send(NewMessage(TypePrice, 1)))
}

func TestClientSend(t *testing.T) {
	client := NewClient("test")
	assert.True(t, client.Send(NewMessage(TypePrice, "x")))

	client.Close()
	assert.False(t, client.Send(NewMessage(TypePrice, "y")))
}

func TestSlowClientDisconnect(t *testing.T) {
	hub := runHub(t)

	client := NewClient("slow-client")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 1, hub.ClientCount())

	// buffer is 256; never read
	for i := 0; i < 600; i++ {
		hub.Broadcast(NewMessage(TypeRecommendation, i))
		if i%50 == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestConcurrentBroadcasts(t *testing.T) {
	hub := runHub(t)

	client := NewClient("test")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hub.Broadcast(NewMessage(TypeRecommendation, i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, hub.ClientCount())
}

func BenchmarkHubBroadcast(b *testing.B) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	for i := 0; i < 100; i++ {
		hub.Register(NewClient(fmt.Sprintf("client-%d", i)))
	}
	time.Sleep(50 * time.Millisecond)

	msg := NewMessage(TypeRecommendation, map[string]interface{}{"longDelta": -1000.0})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Broadcast(msg)
	}
}
