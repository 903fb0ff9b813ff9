package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"recipeshare/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second

	// readRetryDelay spaces out reads after the stream returned an error
	readRetryDelay = time.Second
)

// ManagerConfig tunes the notification workers. Zero values take the defaults.
type ManagerConfig struct {
	Stream       string        // default queue.StreamComments
	Group        string        // default queue.ConsumerGroupNotifications
	Consumer     string        // consumer name prefix, default the host name
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration // XREADGROUP block time
}

// DefaultManagerConfig returns the configuration used by the server.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Stream:       queue.StreamComments,
		Group:        queue.ConsumerGroupNotifications,
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	def := DefaultManagerConfig()
	if c.Stream == "" {
		c.Stream = def.Stream
	}
	if c.Group == "" {
		c.Group = def.Group
	}
	if c.Consumer == "" {
		c.Consumer, _ = os.Hostname()
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = def.BlockTimeout
	}
	return c
}

// Manager runs the goroutines that turn comment events into notifications.
// Every event is acked once handled, whether or not a notification came of it.
type Manager struct {
	consumer queue.Consumer
	handler  *Handler
	cfg      ManagerConfig

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	return &Manager{
		consumer: consumer,
		handler:  handler,
		cfg:      cfg.withDefaults(),
	}
}

// Start creates the consumer group if needed and launches the workers. They
// run until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.consumer.EnsureGroup(ctx, m.cfg.Stream, m.cfg.Group); err != nil {
		return fmt.Errorf("ensure group %s: %w", m.cfg.Group, err)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	for i := 1; i <= m.cfg.WorkerCount; i++ {
		w := &notifier{
			Manager: m,
			tag:     fmt.Sprintf("[Worker-%d]", i),
			name:    consumerName(m.cfg.Consumer, i),
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(ctx)
		}()
	}

	log.Printf("[Manager] Start OK: workers=%d stream=%s group=%s", m.cfg.WorkerCount, m.cfg.Stream, m.cfg.Group)
	return nil
}

// Stop cancels the workers and waits for the batch in hand to finish.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		log.Printf("[Manager] Stop OK")
	})
}

// notifier is one consumer of the group.
type notifier struct {
	*Manager
	tag  string
	name string
}

// run first drains the events this consumer left unacked in an earlier
// process, then follows the stream.
func (w *notifier) run(ctx context.Context) {
	for {
		msgs, err := w.consumer.ReadPending(ctx, w.cfg.Stream, w.cfg.Group, w.name, w.cfg.BatchSize)
		if err != nil {
			log.Printf("%s ReadPending FAILED: consumer=%s err=%v", w.tag, w.name, err)
			break
		}
		if len(msgs) == 0 {
			break
		}
		w.handle(ctx, msgs)
	}

	for ctx.Err() == nil {
		msgs, err := w.consumer.Read(ctx, w.cfg.Stream, w.cfg.Group, w.name, w.cfg.BatchSize, w.cfg.BlockTimeout)
		if err != nil {
			log.Printf("%s Read FAILED: consumer=%s err=%v", w.tag, w.name, err)
			select {
			case <-ctx.Done():
			case <-time.After(readRetryDelay):
			}
			continue
		}
		w.handle(ctx, msgs)
	}
}

func (w *notifier) handle(ctx context.Context, msgs []queue.Message) {
	for _, msg := range msgs {
		if err := w.handler.HandleEvent(ctx, msg.Event); err != nil {
			log.Printf("%s HandleEvent FAILED: msgID=%s type=%s err=%v", w.tag, msg.ID, msg.Event.Type, err)
		}
		if err := w.consumer.Ack(ctx, w.cfg.Stream, w.cfg.Group, msg.ID); err != nil {
			log.Printf("%s Ack FAILED: msgID=%s err=%v", w.tag, msg.ID, err)
		}
	}
}

// consumerName is stable across restarts, so a restarted worker reclaims its
// own pending events.
func consumerName(prefix string, n int) string {
	if prefix == "" {
		return fmt.Sprintf("notifier-%d", n)
	}
	return fmt.Sprintf("%s-notifier-%d", prefix, n)
}
