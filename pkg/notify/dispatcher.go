package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Sink interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// Dispatcher delivers messages after the caller's work has committed. Delivery
// is best-effort: a full queue drops the message and sink errors are only logged.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Message
	timeout time.Duration

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(queueSize int, timeout time.Duration, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Message, queueSize),
		timeout: timeout,
	}
}

func (d *Dispatcher) Enabled() bool {
	return len(d.sinks) > 0
}

// Start runs the delivery worker until Stop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for m := range d.queue {
			d.deliver(m)
		}
	}()
}

func (d *Dispatcher) Publish(m Message) {
	if !d.Enabled() {
		logrus.Warnf("notifications not configured, skipping %q", m.Subject)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		logrus.Warnf("dispatcher stopped, dropping %q", m.Subject)
		return
	}
	select {
	case d.queue <- m:
	default:
		logrus.Warnf("notification queue full, dropping %q", m.Subject)
	}
}

// Stop drains the queue and waits for the worker.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) deliver(m Message) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Send(ctx, m)
		cancel()

		log := logrus.WithFields(logrus.Fields{"sink": sink.Name(), "subject": m.Subject})
		if err != nil {
			log.Errorf("notification failed: %s", err)
			continue
		}
		log.Info("notification sent")
	}
}
