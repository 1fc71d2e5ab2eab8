package kds

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-pos/metrics"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Event types
const (
	EventTableUpdate            = "table_update"
	EventOrderUpdate            = "order_update"
	EventSaleRecorded           = "sale_recorded"
	EventTableReleased          = "table_released"
	EventReconciliationRequired = "reconciliation_required"
)

// AllTables subscribes to events of every table.
const AllTables = 0

const writeWait = 10 * time.Second

// Message is one event. Seq is the table version the data was taken at, so
// clients can drop a snapshot older than one they already applied.
type Message struct {
	Event string      `json:"event"`
	Table int         `json:"table,omitempty"`
	Seq   uint64      `json:"seq,omitempty"`
	Data  interface{} `json:"data"`
}

// Subscription receives the messages of one table, or of all tables.
type Subscription struct {
	C <-chan Message

	ch    chan Message
	table int
	hub   *Hub
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// Hub fans messages out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

func (h *Hub) Subscribe(table int) *Subscription {
	ch := make(chan Message, h.buffer)
	s := &Subscription{C: ch, ch: ch, table: table, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Publish delivers msg to every matching subscriber without waiting.
func (h *Hub) Publish(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if s.table != AllTables && s.table != msg.Table {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

// ServeClient streams messages to a websocket client until it disconnects.
// Incoming frames are read and discarded so close frames are noticed.
func (h *Hub) ServeClient(conn *websocket.Conn, table int) {
	sub := h.Subscribe(table)
	defer conn.Close()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for msg := range sub.C {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			utils.ErrorLogger.Printf("Error sending %s to websocket client: %v", msg.Event, err)
			sub.Close()
			break
		}
	}
}
