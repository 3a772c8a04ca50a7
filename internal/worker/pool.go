package worker

import (
	"context"
	"log/slog"
	"sync"
)

// HandlerFunc processes one queued key, usually a transaction id.
type HandlerFunc func(ctx context.Context, key string) error

// Pool runs a handler over submitted keys with a fixed number of workers. A
// key already queued or running is not queued again.
type Pool struct {
	jobs    chan string
	handler HandlerFunc
	logger  *slog.Logger
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
}

func NewPool(bufferSize int, handler HandlerFunc, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:     make(chan string, bufferSize),
		handler:  handler,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		inflight: map[string]struct{}{},
	}
}

func (p *Pool) Start(workerCount int) {
	if workerCount < 1 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for key := range p.jobs {
		if err := p.handler(p.ctx, key); err != nil {
			p.logger.Error("job processing failed",
				"key", key,
				"error", err,
			)
		}
		p.mu.Lock()
		delete(p.inflight, key)
		p.mu.Unlock()
	}
}

// Submit queues key without blocking. It reports false when the key is
// already pending, the buffer is full or the pool is shut down.
func (p *Pool) Submit(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if _, ok := p.inflight[key]; ok {
		return false
	}
	select {
	case p.jobs <- key:
		p.inflight[key] = struct{}{}
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When
// ctx expires first the running handlers are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
