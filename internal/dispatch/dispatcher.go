// Package dispatch runs analysis jobs on a fixed pool of workers. Each job id has
// at most one ticket in flight; submitting it again returns the same ticket.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"mentor-insights-go/internal/logger"
	"mentor-insights-go/internal/types"
)

var (
	ErrClosed    = errors.New("dispatcher is shut down")
	ErrQueueFull = errors.New("dispatch queue is full")
)

// JobProcessor runs one job to a terminal state.
type JobProcessor interface {
	Process(ctx context.Context, id string) (*types.AnalysisJob, error)
}

// Ticket tracks one submitted job.
type Ticket struct {
	ID   string
	done chan struct{}
	job  *types.AnalysisJob
	err  error
}

// Done is closed once the job has been processed.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the job has been processed or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (*types.AnalysisJob, error) {
	select {
	case <-t.done:
		return t.job, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type Options struct {
	Workers   int
	QueueSize int
	Log       *logrus.Entry
}

type Dispatcher struct {
	proc  JobProcessor
	queue chan *Ticket
	log   *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]*Ticket
	closed   bool
}

// New starts the worker pool. Call Shutdown to stop it.
func New(proc JobProcessor, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		proc:     proc,
		queue:    make(chan *Ticket, opts.QueueSize),
		log:      log.WithField("component", "dispatch"),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]*Ticket),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Submit queues job id. A job already queued or running returns its existing ticket.
func (d *Dispatcher) Submit(id string) (*Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if t, ok := d.inflight[id]; ok {
		return t, nil
	}
	t := &Ticket{ID: id, done: make(chan struct{})}
	select {
	case d.queue <- t:
	default:
		return nil, ErrQueueFull
	}
	d.inflight[id] = t
	d.log.WithField("job_id", id).Debug("job queued")
	return t, nil
}

// InFlight reports how many jobs are queued or running.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

func (d *Dispatcher) worker(n int) {
	defer d.wg.Done()
	log := d.log.WithField("worker", n)
	for t := range d.queue {
		t.job, t.err = d.proc.Process(d.ctx, t.ID)
		if t.err != nil {
			log.WithField("job_id", t.ID).WithError(t.err).Warn("job not processed")
		}
		d.mu.Lock()
		delete(d.inflight, t.ID)
		d.mu.Unlock()
		close(t.done)
	}
}

// Shutdown stops intake and waits for queued jobs to drain. If ctx ends first the
// running jobs are cancelled; their terminal state is still recorded.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-drained
		return ctx.Err()
	}
}
