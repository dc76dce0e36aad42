package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls queueing behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	Workers    int
	// TaskTimeout bounds each handler call. Zero leaves it unbounded.
	TaskTimeout time.Duration
}

// Handler processes one queued item. ctx is detached from the producer's
// request and carries only the task timeout.
type Handler[T any] func(ctx context.Context, item T)

// Dispatcher forwards items to a handler on background goroutines.
// A nil *Dispatcher accepts nothing and is safe to call.
type Dispatcher[T any] struct {
	cfg       Config
	handle    Handler[T]
	ch        chan T
	done      chan struct{} // closed first; unblocks waiting producers
	stop      chan struct{} // closed once no producer can still send
	sendMu    sync.RWMutex
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	processed atomic.Uint64
	panics    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// New starts a dispatcher. It returns nil when cfg.Enabled is false.
func New[T any](cfg Config, handle Handler[T]) *Dispatcher[T] {
	if !cfg.Enabled || handle == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	d := &Dispatcher[T]{
		cfg:    cfg,
		handle: handle,
		ch:     make(chan T, cfg.BufferSize),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.run()
	}
	return d
}

func (d *Dispatcher[T]) run() {
	defer d.wg.Done()

	for {
		select {
		case item := <-d.ch:
			d.exec(item)
		case <-d.stop:
			for {
				select {
				case item := <-d.ch:
					d.exec(item)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher[T]) exec(item T) {
	ctx := context.Background()
	if d.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.TaskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
		}
		d.processed.Add(1)
	}()
	d.handle(ctx, item)
}

// Submit queues item. It reports false when the item was dropped because
// the queue was full, the dispatcher was closed, or ctx ended first. Every
// accepted item is handled before Close returns; items given up on while
// Close was running count as dropped.
func (d *Dispatcher[T]) Submit(ctx context.Context, item T) bool {
	if d == nil {
		return false
	}
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.closed.Load() {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- item:
			return true
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- item:
		return true
	case <-ctx.Done():
	case <-d.done:
	}
	d.dropped.Add(1)
	return false
}

// Close stops accepting items and waits until the queue is drained.
func (d *Dispatcher[T]) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)

		// Wait out producers already past the closed check, then let the
		// workers drain what they left in the queue.
		d.sendMu.Lock()
		close(d.stop)
		d.sendMu.Unlock()

		d.wg.Wait()
	})
}

// Dropped returns the number of items rejected by Submit.
func (d *Dispatcher[T]) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Processed returns the number of handler calls that finished, including
// ones that panicked.
func (d *Dispatcher[T]) Processed() uint64 {
	if d == nil {
		return 0
	}
	return d.processed.Load()
}

// Panics returns the number of handler calls that panicked.
func (d *Dispatcher[T]) Panics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
