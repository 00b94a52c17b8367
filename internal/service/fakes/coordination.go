package fakes

import (
	"context"
	"sync"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/lock"
	"shg-finance/internal/service/interfaces"
)

// Locker serialises holders of the same key inside one process.
type Locker struct {
	mu    sync.Mutex
	held  map[string]chan struct{}
	taken []string
}

var _ interfaces.LockerInterface = (*Locker)(nil)

func NewLocker() *Locker {
	return &Locker{held: map[string]chan struct{}{}}
}

func (l *Locker) Acquire(ctx context.Context, key string) (lock.Unlock, error) {
	for {
		l.mu.Lock()
		wait, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.taken = append(l.taken, key)
			l.mu.Unlock()

			var once sync.Once
			return func(context.Context) {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, apperrors.Conflict("timed out waiting for lock %s", key)
		}
	}
}

// Taken lists every key acquired so far, in order.
func (l *Locker) Taken() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.taken...)
}

// Held reports whether key is currently locked.
func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// TxRunner runs work directly, the way the Mongo runner does when transactions are off.
type TxRunner struct {
	Transactional bool
	mu            sync.Mutex
	runs          int
}

var _ interfaces.TransactionRunnerInterface = (*TxRunner)(nil)

func (r *TxRunner) Enabled() bool {
	return r.Transactional
}

func (r *TxRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	return fn(ctx)
}

func (r *TxRunner) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

// StreamPublisher records ledger stream messages. OnPublish, when set, runs before each message is
// recorded.
type StreamPublisher struct {
	mu        sync.Mutex
	Keys      []string
	Messages  [][]byte
	Err       error
	OnPublish func(key string)
}

var _ interfaces.KafkaPublisherInterface = (*StreamPublisher)(nil)

func (p *StreamPublisher) Publish(ctx context.Context, key string, msg []byte) error {
	if p.OnPublish != nil {
		p.OnPublish(key)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Keys = append(p.Keys, key)
	p.Messages = append(p.Messages, msg)
	return nil
}

func (p *StreamPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Messages)
}
