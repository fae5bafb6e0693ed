package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"geojungle/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second
)

// Manager orchestrates worker goroutines that consume the ledger stream.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	stream      string
	group       string
	namePrefix  string

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration // XREADGROUP block time
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}

	// Consumer names must be stable across restarts of the same host so
	// pending entries are picked up again by ReadPending.
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		stream:      queue.StreamLedger,
		group:       queue.ConsumerGroupLedger,
		namePrefix:  host,
	}
}

// Start begins the worker goroutines. Call Stop to shut them down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group); err != nil {
		m.cancel()
		return err
	}

	log.Printf("[Manager] Starting %d workers for stream=%s group=%s", m.workerCount, m.stream, m.group)

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, m.consumerName(workerID))
	}
	return nil
}

// Stop blocks until all workers have finished their current batch.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	log.Printf("[Manager] Stopping workers...")
	m.cancel()
	m.wg.Wait()
	log.Printf("[Manager] All workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	log.Debugf("[Worker-%d] Started (consumer=%s)", workerID, consumerName)

	// Crash recovery first.
	m.processPending(workerID, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			log.Debugf("[Worker-%d] Shutting down", workerID)
			return
		default:
			m.processMessages(workerID, consumerName)
		}
	}
}

func (m *Manager) processPending(workerID int, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
		if err != nil {
			log.Printf("[Worker-%d] Error reading pending: %v", workerID, err)
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Printf("[Worker-%d] Processing %d pending messages", workerID, len(messages))
		m.handleMessages(workerID, messages)
	}
}

func (m *Manager) processMessages(workerID int, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Printf("[Worker-%d] Error reading: %v", workerID, err)
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if len(messages) == 0 {
		return
	}
	m.handleMessages(workerID, messages)
}

// handleMessages always acks. Handler failures are already turned into a
// new event by the services (cascade retries) or repaired by the scheduled
// leaderboard rebuild, so redelivery would only repeat work.
func (m *Manager) handleMessages(workerID int, messages []queue.Message) {
	for _, msg := range messages {
		log.Debugf("[Worker-%d] Processing msgID=%s type=%s", workerID, msg.ID, msg.Event.Type)

		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			log.WithError(err).WithField("msg_id", msg.ID).Warnf("[Worker-%d] Handler error", workerID)
		}

		// Ack with a fresh context so a shutdown mid-batch does not leave the
		// entry pending after it was handled.
		ackCtx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), 2*time.Second)
		if err := m.consumer.Ack(ackCtx, m.stream, m.group, msg.ID); err != nil {
			log.Printf("[Worker-%d] ACK error msgID=%s: %v", workerID, msg.ID, err)
		}
		cancel()
	}
}

func (m *Manager) consumerName(workerID int) string {
	return fmt.Sprintf("%s-worker-%d", m.namePrefix, workerID)
}
