package chatlog

import (
	"context"
	"sync"
	"time"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/log"
)

// Appender is the subset of Store the writer needs.
type Appender interface {
	Append(ctx context.Context, sender string, message string, response string) error
}

type logTask struct {
	sender   string
	message  string
	response string
}

// Writer persists conversation turns asynchronously so message handling never
// waits on the database. Record never blocks; when the queue is full the turn
// is dropped with a log line.
type Writer struct {
	store   Appender
	queue   chan *logTask
	workers int
	enabled bool

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

const appendTimeout = 10 * time.Second

func NewWriter(store Appender) *Writer {
	workers := env.GetEnvIntOrDefault("CHATLOG_WORKERS", 2)
	if workers <= 0 {
		workers = 2
	}
	enabled := env.GetEnvBoolOrDefault("CHATLOG_ENABLED", true)

	writer := &Writer{
		store:   store,
		queue:   make(chan *logTask, 1000),
		workers: workers,
		enabled: enabled,
	}

	if enabled {
		for i := 0; i < workers; i++ {
			writer.wg.Add(1)
			go writer.worker()
		}
	}

	return writer
}

// Record enqueues one turn for persistence.
func (w *Writer) Record(sender string, message string, response string) {
	if !w.enabled {
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	select {
	case w.queue <- &logTask{sender: sender, message: message, response: response}:
	default:
		log.BotOp(sender, "chatlog").Warn("Chat log queue is full, dropping entry")
	}
	w.mu.Unlock()
}

// Shutdown stops accepting new entries and waits until the queued ones are
// written.
func (w *Writer) Shutdown() {
	if !w.enabled {
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Writer) worker() {
	defer w.wg.Done()
	for task := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		if err := w.store.Append(ctx, task.sender, task.message, task.response); err != nil {
			log.SysErr("chatlog", err).Error("Failed to persist chat log entry")
		}
		cancel()
	}
}
