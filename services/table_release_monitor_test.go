package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeremiapane/restaurant-pos/kds"
)

type flakyReleaser struct {
	mu       sync.Mutex
	failures map[uint]int
	released []uint
}

func (r *flakyReleaser) ReleaseTable(ctx context.Context, tableID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures[tableID] > 0 {
		r.failures[tableID]--
		return errors.New("connection reset by peer")
	}
	r.released = append(r.released, tableID)
	return nil
}

func TestReleaseMonitorRetriesThenSucceeds(t *testing.T) {
	releaser := &flakyReleaser{failures: map[uint]int{7: 1}}
	events := &eventLog{}
	m := NewTableReleaseMonitor(releaser, events, time.Hour, 3)

	m.AddToRetryQueue(7)
	m.AddToRetryQueue(7)
	assert.Equal(t, []uint{7}, m.Pending())

	m.RetryNow(context.Background())
	assert.Equal(t, []uint{7}, m.Pending())

	m.RetryNow(context.Background())
	assert.Empty(t, m.Pending())
	assert.Equal(t, []uint{7}, releaser.released)
	assert.Equal(t, 1, events.count(kds.EventTableReleased))
}

func TestReleaseMonitorGivesUp(t *testing.T) {
	releaser := &flakyReleaser{failures: map[uint]int{3: 100}}
	events := &eventLog{}
	m := NewTableReleaseMonitor(releaser, events, time.Hour, 2)

	m.AddToRetryQueue(3)
	m.RetryNow(context.Background())
	m.RetryNow(context.Background())
	m.RetryNow(context.Background())

	assert.Empty(t, m.Pending())
	assert.Empty(t, releaser.released)
	assert.Equal(t, 1, events.count(kds.EventReconciliationRequired))
}

func TestReleaseMonitorLoop(t *testing.T) {
	releaser := &flakyReleaser{failures: map[uint]int{}}
	m := NewTableReleaseMonitor(releaser, nil, 10*time.Millisecond, 3)
	m.Start()
	m.Start()
	defer m.Stop()

	m.AddToRetryQueue(1)
	assert.Eventually(t, func() bool {
		releaser.mu.Lock()
		defer releaser.mu.Unlock()
		return len(releaser.released) == 1
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
}
