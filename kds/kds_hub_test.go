package kds

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-s.C:
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestPublishFiltersByTable(t *testing.T) {
	hub := NewHub(4)
	all := hub.Subscribe(AllTables)
	t101 := hub.Subscribe(101)
	t102 := hub.Subscribe(102)

	hub.Publish(Message{Event: EventTableUpdate, Table: 101, Data: "ordered"})

	assert.Equal(t, "ordered", receive(t, all).Data)
	assert.Equal(t, 101, receive(t, t101).Table)
	assert.Len(t, t102.C, 0)
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	hub := NewHub(1)
	slow := hub.Subscribe(AllTables)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(Message{Event: EventOrderUpdate, Table: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
	assert.Len(t, slow.C, 1)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(1)
	s := hub.Subscribe(5)
	assert.Equal(t, 1, hub.Subscribers())

	s.Close()
	s.Close()
	_, ok := <-s.C
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers())

	hub.Publish(Message{Event: EventTableUpdate, Table: 5})
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub(2)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		s := hub.Subscribe(AllTables)
		go func() {
			defer wg.Done()
			hub.Publish(Message{Event: EventTableUpdate, Table: 1})
		}()
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
	hub.Close()
	assert.Equal(t, 0, hub.Subscribers())
}

func TestServeClientStreamsJSON(t *testing.T) {
	hub := NewHub(8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.ServeClient(conn, AllTables)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(Message{Event: EventSaleRecorded, Table: 101, Data: map[string]string{"total": "150.00"}})

	var msg Message
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventSaleRecorded, msg.Event)
	assert.Equal(t, 101, msg.Table)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}
