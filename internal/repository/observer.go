package repository

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used to resolve "today".
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// tableObservers fans a table's snapshots out to subscribers. Each subscriber
// is a notify func that reloads its own query and hands the result to the
// caller's callback. The mutex serializes initial delivery and publishing, so
// a subscriber never sees an older snapshot after a newer one.
type tableObservers struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(ctx context.Context) error
	log    zerolog.Logger
}

func newTableObservers(log zerolog.Logger) *tableObservers {
	return &tableObservers{
		subs: make(map[int]func(ctx context.Context) error),
		log:  log,
	}
}

// add delivers the current snapshot and registers notify for later mutations.
// The returned func is idempotent and must not be called from notify.
func (o *tableObservers) add(ctx context.Context, notify func(ctx context.Context) error) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := notify(ctx); err != nil {
		return nil, err
	}

	id := o.nextID
	o.nextID++
	o.subs[id] = notify

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}, nil
}

// publish runs after a committed write. A cancelled request context must not
// starve subscribers of the snapshot, so cancellation is detached.
func (o *tableObservers) publish(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	for id, notify := range o.subs {
		if err := notify(ctx); err != nil {
			o.log.Warn().Err(err).Int("subscriber", id).Msg("failed to publish snapshot")
		}
	}
}

func (o *tableObservers) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
