package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/metrics"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// TableReleaser frees a table after its order closed.
type TableReleaser interface {
	ReleaseTable(ctx context.Context, tableID uint) error
}

type releaseTask struct {
	TableID  uint
	Attempts int
}

// TableReleaseMonitor retries table releases that failed right after
// checkout. Tables that still fail after maxRetries need manual
// reconciliation.
type TableReleaseMonitor struct {
	releaser      TableReleaser
	publisher     Publisher
	retryQueue    []releaseTask
	retryInterval time.Duration
	maxRetries    int
	mutex         sync.Mutex

	stop chan struct{}
	done chan struct{}
}

func NewTableReleaseMonitor(releaser TableReleaser, publisher Publisher, interval time.Duration, maxRetries int) *TableReleaseMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &TableReleaseMonitor{
		releaser:      releaser,
		publisher:     publisher,
		retryQueue:    make([]releaseTask, 0),
		retryInterval: interval,
		maxRetries:    maxRetries,
	}
}

// Start runs the retry loop until Stop is called.
func (m *TableReleaseMonitor) Start() {
	m.mutex.Lock()
	if m.stop != nil {
		m.mutex.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mutex.Unlock()

	go m.processRetryQueue(stop, done)
	utils.InfoLogger.Println("Table release monitor started")
}

func (m *TableReleaseMonitor) Stop() {
	m.mutex.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mutex.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	utils.InfoLogger.Println("Table release monitor stopped")
}

// AddToRetryQueue queues a table once; queuing it again is a no-op.
func (m *TableReleaseMonitor) AddToRetryQueue(tableID uint) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.enqueueLocked(releaseTask{TableID: tableID})
}

func (m *TableReleaseMonitor) enqueueLocked(task releaseTask) {
	for _, t := range m.retryQueue {
		if t.TableID == task.TableID {
			return
		}
	}
	m.retryQueue = append(m.retryQueue, task)
	utils.InfoLogger.Printf("Added table %d to release retry queue", task.TableID)
}

// Pending returns the queued table ids.
func (m *TableReleaseMonitor) Pending() []uint {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ids := make([]uint, 0, len(m.retryQueue))
	for _, t := range m.retryQueue {
		ids = append(ids, t.TableID)
	}
	return ids
}

func (m *TableReleaseMonitor) processRetryQueue(stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(m.retryInterval)
	defer ticker.Stop()
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.RetryNow(context.Background())
		}
	}
}

// RetryNow makes one pass over the queue.
func (m *TableReleaseMonitor) RetryNow(ctx context.Context) {
	m.mutex.Lock()
	if len(m.retryQueue) == 0 {
		m.mutex.Unlock()
		return
	}
	queue := make([]releaseTask, len(m.retryQueue))
	copy(queue, m.retryQueue)
	m.retryQueue = make([]releaseTask, 0)
	m.mutex.Unlock()

	utils.InfoLogger.Printf("Processing release retry queue with %d tables", len(queue))
	for _, task := range queue {
		m.retry(ctx, task)
	}
}

func (m *TableReleaseMonitor) retry(ctx context.Context, task releaseTask) {
	err := m.releaser.ReleaseTable(ctx, task.TableID)
	if err == nil {
		utils.InfoLogger.Printf("Released table %d from retry queue", task.TableID)
		if m.publisher != nil {
			m.publisher.Publish(kds.Message{Event: kds.EventTableReleased, Data: map[string]interface{}{"table_id": task.TableID}})
		}
		return
	}

	task.Attempts++
	if task.Attempts >= m.maxRetries {
		metrics.TableReleaseFailures.Inc()
		utils.ErrorLogger.Printf("Table %d could not be released after %d retries, manual reconciliation required: %v", task.TableID, task.Attempts, err)
		if m.publisher != nil {
			m.publisher.Publish(kds.Message{Event: kds.EventReconciliationRequired, Data: map[string]interface{}{
				"table_id": task.TableID,
				"error":    err.Error(),
			}})
		}
		return
	}

	utils.ErrorLogger.Printf("Error releasing table %d (attempt %d): %v", task.TableID, task.Attempts, err)
	m.mutex.Lock()
	m.enqueueLocked(task)
	m.mutex.Unlock()
}
