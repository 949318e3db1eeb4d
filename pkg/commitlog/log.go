package commitlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/vdom"
)

// Log collects one Record per commit. It is a reconciler.Observer: install
// it with reconciler.WithObserver and it drains the host's patches when
// each commit finishes, so nothing else should call host.TakePatches.
//
// Readers (Records, Subscribe) may run on other goroutines.
type Log struct {
	reconciler.NopObserver

	host   *vdom.Host
	limit  int
	now    func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	seq     uint64
	records []Record
	subs    map[int]func(Record)
	nextSub int
}

// Option configures a Log.
type Option func(*Log)

// WithLimit keeps only the newest n records. Zero keeps everything.
func WithLimit(n int) Option {
	return func(l *Log) {
		l.limit = n
	}
}

// WithNow sets the clock used to stamp records.
func WithNow(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithLogger sets the logger for dropped records.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// New creates a Log that drains host.
func New(host *vdom.Host, opts ...Option) *Log {
	l := &Log{
		host:   host,
		now:    time.Now,
		logger: slog.Default(),
		subs:   make(map[int]func(Record)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CommitFinished records the patches of the commit that just ended.
func (l *Log) CommitFinished(root *reconciler.Root, t expiration.Time, effects int, d time.Duration) {
	patches := l.host.TakePatches()

	l.mu.Lock()
	l.seq++
	rec := Record{
		Seq:            l.seq,
		Root:           root.Tag.String(),
		ExpirationTime: t,
		Effects:        effects,
		Patches:        patches,
		Duration:       d,
		At:             l.now(),
	}
	l.records = append(l.records, rec)
	l.trimLocked()
	subs := make([]func(Record), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(rec)
	}
}

// Records returns a copy of the retained records, oldest first.
func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Record(nil), l.records...)
}

// Len returns the number of retained records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Last returns the newest record.
func (l *Log) Last() (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return Record{}, false
	}
	return l.records[len(l.records)-1], true
}

// Subscribe calls fn with every future record, on the goroutine that
// committed it. fn must not block. The returned func unsubscribes.
func (l *Log) Subscribe(fn func(Record)) (cancel func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Flush writes the retained records to sink and clears them on success.
func (l *Log) Flush(ctx context.Context, sink Sink) error {
	l.mu.Lock()
	records := l.records
	l.records = nil
	l.mu.Unlock()

	if len(records) == 0 {
		return nil
	}
	if err := sink.Write(ctx, records); err != nil {
		l.mu.Lock()
		l.records = append(records, l.records...)
		l.trimLocked()
		l.mu.Unlock()
		return err
	}
	return nil
}

// trimLocked drops the oldest records beyond the limit. l.mu must be held.
func (l *Log) trimLocked() {
	if l.limit <= 0 || len(l.records) <= l.limit {
		return
	}
	dropped := len(l.records) - l.limit
	l.records = append(l.records[:0], l.records[dropped:]...)
	l.logger.Debug("commitlog: dropped old records", "count", dropped)
}

var _ reconciler.Observer = (*Log)(nil)

// FlushEvery flushes to sink every interval until ctx is done, then
// flushes once more. Failed flushes are logged and retried on the next
// tick.
func (l *Log) FlushEvery(ctx context.Context, interval time.Duration, sink Sink) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.Flush(context.WithoutCancel(ctx), sink)
		case <-ticker.C:
			if err := l.Flush(ctx, sink); err != nil {
				l.logger.Warn("commitlog: flush failed", "error", err, "pending", l.Len())
			}
		}
	}
}
