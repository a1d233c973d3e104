package photos

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher returns a random photo. *Client is a Fetcher.
type Fetcher interface {
	Random(ctx context.Context) (Photo, error)
}

// Rotator hands out the current background photo, fetching a new one when
// the current one is older than the refresh interval. Concurrent callers that
// find the photo stale share a single fetch. When a fetch fails, the last good
// photo keeps being served and no new fetch is attempted until retryAfter has
// passed.
//
// A nil Rotator, or one without a Fetcher, always returns ErrNoPhoto.
type Rotator struct {
	fetcher    Fetcher
	refresh    time.Duration
	retryAfter time.Duration
	logger     func(context.Context) *slog.Logger
	now        func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	current   *Photo
	fetchedAt time.Time
	failedAt  time.Time
}

// NewRotator returns a Rotator that refreshes the photo from fetcher every
// refresh interval. A refresh of zero or less fetches a new photo for every
// caller. Failed fetches are logged to the logger logger returns for the
// caller's context; logger may be nil.
func NewRotator(fetcher Fetcher, refresh time.Duration, logger func(context.Context) *slog.Logger) *Rotator {
	if logger == nil {
		logger = discardLogger
	}
	retryAfter := 30 * time.Second
	if refresh > 0 && refresh < retryAfter {
		retryAfter = refresh
	}
	return &Rotator{
		fetcher:    fetcher,
		refresh:    refresh,
		retryAfter: retryAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Current returns the photo to show right now.
func (r *Rotator) Current(ctx context.Context) (Photo, error) {
	if r == nil || r.fetcher == nil {
		return Photo{}, ErrNoPhoto
	}

	now := r.now()
	r.mu.RLock()
	current := r.current
	fresh := current != nil && r.refresh > 0 && now.Sub(r.fetchedAt) < r.refresh
	backingOff := !r.failedAt.IsZero() && now.Sub(r.failedAt) < r.retryAfter
	r.mu.RUnlock()

	if fresh {
		return *current, nil
	}
	if backingOff {
		if current != nil {
			return *current, nil
		}
		return Photo{}, ErrNoPhoto
	}

	res, err, _ := r.group.Do("random", func() (any, error) {
		// the fetch is shared between callers, so it can't be bound to
		// any one of their cancellations
		photo, err := r.fetcher.Random(context.WithoutCancel(ctx))
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.failedAt = r.now()
			return nil, err
		}
		r.current = &photo
		r.fetchedAt = r.now()
		r.failedAt = time.Time{}
		return photo, nil
	})
	if err != nil {
		r.logger(ctx).WarnContext(ctx, "error fetching background photo", "error", err)
		if current != nil {
			return *current, nil
		}
		return Photo{}, ErrNoPhoto
	}
	return res.(Photo), nil
}

func discardLogger(context.Context) *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
