package conversation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// ErrExecutorClosed is returned by Submit once the executor stopped
// accepting jobs.
var ErrExecutorClosed = errors.New("conversation: executor closed")

// Job is a unit of work bound to one identity.
type Job func(ctx context.Context)

// Executor runs jobs so that two jobs for the same identity never overlap
// and run in submission order. Submit fails only when the job was not
// accepted.
type Executor interface {
	Submit(identity string, job Job) error
}

type laneJob struct {
	identity string
	job      Job
}

// Dispatcher fans jobs out over a fixed set of lanes. An identity always
// hashes to the same lane and each lane is drained by one goroutine.
type Dispatcher struct {
	lanes  []chan laneJob
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

const defaultLaneBuffer = 256

// NewDispatcher starts n lanes.
func NewDispatcher(n int, logger *logging.Logger) *Dispatcher {
	if n <= 0 {
		n = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		lanes:  make([]chan laneJob, n),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range d.lanes {
		d.lanes[i] = make(chan laneJob, defaultLaneBuffer)
		d.wg.Add(1)
		go d.drain(i)
	}
	return d
}

// Submit queues job on the identity's lane. Jobs submitted after Close are
// dropped with ErrExecutorClosed.
func (d *Dispatcher) Submit(identity string, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("dispatcher closed, dropping job", "identity", identity)
		return ErrExecutorClosed
	}
	d.lanes[d.laneFor(identity)] <- laneJob{identity: identity, job: job}
	return nil
}

// Close stops accepting jobs, finishes the queued ones and waits for the
// lanes to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()
	d.wg.Wait()
	d.cancel()
}

func (d *Dispatcher) laneFor(identity string) int {
	return int(xxhash.Sum64String(identity) % uint64(len(d.lanes)))
}

func (d *Dispatcher) drain(lane int) {
	defer d.wg.Done()
	for j := range d.lanes[lane] {
		d.run(lane, j)
	}
}

func (d *Dispatcher) run(lane int, j laneJob) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("conversation job panicked",
				"identity", j.identity,
				"lane", lane,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	j.job(d.ctx)
}

// InlineExecutor runs each job on the caller's goroutine, holding a
// per-identity lock for its duration.
type InlineExecutor struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewInlineExecutor returns an InlineExecutor.
func NewInlineExecutor() *InlineExecutor {
	return &InlineExecutor{locks: make(map[string]*sync.Mutex)}
}

func (e *InlineExecutor) Submit(identity string, job Job) error {
	l := e.lockFor(identity)
	l.Lock()
	defer l.Unlock()
	job(context.Background())
	return nil
}

func (e *InlineExecutor) lockFor(identity string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		e.locks[identity] = l
	}
	return l
}
