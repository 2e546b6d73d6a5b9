package docstore

import (
	"context"
	"sync"
)

// ChangeFeed carries "collection changed" signals from writers to watchers for
// backends that have no native push channel. Signals are coalesced: a watcher
// that has not consumed the previous signal yet simply re-reads once.
type ChangeFeed interface {
	Publish(ctx context.Context, collection string) error
	Subscribe(ctx context.Context, collection string) (<-chan struct{}, error)
}

// LocalFeed is an in-process ChangeFeed.
type LocalFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewLocalFeed creates an empty in-process feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[chan struct{}]struct{})}
}

// Publish signals every subscriber of collection.
func (f *LocalFeed) Publish(_ context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[collection] {
		signal(ch)
	}
	return nil
}

// Subscribe returns a signal channel that is closed when ctx is done.
func (f *LocalFeed) Subscribe(ctx context.Context, collection string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[chan struct{}]struct{})
	}
	f.subs[collection][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs[collection], ch)
		if len(f.subs[collection]) == 0 {
			delete(f.subs, collection)
		}
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// watchWithFeed implements Store.Watch on top of a ChangeFeed by re-running q
// after every signal for its collection.
func watchWithFeed(
	ctx context.Context, feed ChangeFeed, q Query,
	run func(context.Context, Query) ([]*Document, error),
) (<-chan Snapshot, error) {
	signals, err := feed.Subscribe(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		emit := func() {
			docs, err := run(ctx, q)
			if ctx.Err() != nil {
				return
			}
			sendLatest(out, Snapshot{Docs: docs, Err: err})
		}
		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				emit()
			}
		}
	}()
	return out, nil
}

// sendLatest replaces an unconsumed snapshot with s. Only one goroutine may send on out.
func sendLatest(out chan Snapshot, s Snapshot) {
	for {
		select {
		case out <- s:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
