package nico

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	httpclient "nicotools/http"
	"nicotools/internal/pace"
)

// Target identifies one item while it moves through the fetch pipeline.
// WorkingID is what the session-parameter endpoint wants; DisplayID is what
// the user asked for and what the output file is named after.
type Target struct {
	WorkingID string
	DisplayID string
}

// resolveTarget follows the watch-page redirect for redirect-only IDs.
func resolveTarget(ctx context.Context, client *httpclient.Client, ep Endpoints, rec *VideoRecord) (Target, error) {
	t := Target{WorkingID: rec.WatchID, DisplayID: rec.ID}
	if t.WorkingID == "" {
		t.WorkingID = rec.ID
	}
	if !Classify(rec.ID).RedirectOnly() {
		return t, nil
	}

	resp, err := client.Get(ctx, ep.Watch+rec.ID)
	if err != nil {
		return t, fmt.Errorf("redirect check: %w", err)
	}
	if seg := lastSegment(resp.FinalURL); seg != "" {
		t.WorkingID = seg
	}
	return t, nil
}

// outcome is the verdict of one attempt at an item.
type outcome int

const (
	outcomeDone     outcome = iota
	outcomeRetry            // wait, then repeat the same step
	outcomeFallback         // move on to the next step immediately
	outcomeGiveUp
)

// attemptLoop runs step until it is done or gives up, at most maxAttempts
// times. wait is slept before every retry.
func attemptLoop(ctx context.Context, maxAttempts int, wait time.Duration, step func(ctx context.Context, attempt int) (outcome, error)) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		o, err := step(ctx, attempt)
		switch o {
		case outcomeDone:
			return nil
		case outcomeGiveUp:
			return err
		case outcomeRetry:
			lastErr = err
			if attempt+1 < maxAttempts {
				if err := sleep(ctx, wait); err != nil {
					return err
				}
			}
		case outcomeFallback:
			lastErr = err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchOptions are shared by the authenticated fetchers.
type FetchOptions struct {
	Logger zerolog.Logger

	// Interval spaces out consecutive items. Zero uses the fetcher's default.
	Interval time.Duration

	AccessLockWait    time.Duration
	AccessLockRetries int

	// Progress receives byte counts for streamed downloads. May be nil.
	Progress ProgressSink
}

func (o FetchOptions) interval(def time.Duration) time.Duration {
	if o.Interval > 0 {
		return o.Interval
	}
	return def
}

func (o FetchOptions) lock() lockPolicy {
	p := lockPolicy{wait: o.AccessLockWait, attempts: o.AccessLockRetries}
	if p.wait <= 0 {
		p.wait = 8 * time.Second
	}
	if p.attempts <= 0 {
		p.attempts = 3
	}
	return p
}

// lockPolicy bounds how long an access-locked item is retried.
type lockPolicy struct {
	wait     time.Duration
	attempts int
}

func (p lockPolicy) normalised() lockPolicy {
	if p.attempts < 1 {
		p.attempts = 1
	}
	return p
}

// prepare resolves rec to its working ID and fetches its session parameters.
// An access lock repeats both steps after policy.wait, up to policy.attempts
// times.
func prepare(ctx context.Context, client *httpclient.Client, ep Endpoints, rec *VideoRecord, policy lockPolicy, log zerolog.Logger) (Target, *FlvParams, error) {
	policy = policy.normalised()
	var (
		target Target
		params *FlvParams
	)
	err := attemptLoop(ctx, policy.attempts, policy.wait, func(ctx context.Context, attempt int) (outcome, error) {
		t, err := resolveTarget(ctx, client, ep, rec)
		if err != nil {
			return outcomeGiveUp, err
		}
		p, err := fetchFlv(ctx, client, ep, t.WorkingID)
		switch {
		case err == nil:
			target, params = t, p
			return outcomeDone, nil
		case errors.Is(err, ErrAccessLocked):
			log.Warn().Str("id", t.DisplayID).Int("attempt", attempt+1).Dur("wait", policy.wait).
				Msg("access locked, waiting before retrying")
			return outcomeRetry, err
		default:
			return outcomeGiveUp, err
		}
	})
	return target, params, err
}

// BatchResult lists what a run did, by content ID.
type BatchResult struct {
	Done    []string
	Skipped []string
	Failed  map[string]error
	// Files maps each completed ID to the file written for it.
	Files map[string]string
}

// Err returns a *BatchError when anything was skipped or failed.
func (r *BatchResult) Err(kind string) error {
	if len(r.Skipped) == 0 && len(r.Failed) == 0 {
		return nil
	}
	return &BatchError{Kind: kind, Skipped: r.Skipped, Failed: r.Failed}
}

// itemFunc processes one record and returns the path written.
type itemFunc func(ctx context.Context, rec *VideoRecord, dest string) (string, error)

// runBatch drives every record of db through fn in order, pacing between
// items. One item's failure never stops the others; a destination that
// cannot be created or a cancelled context stops the run.
func runBatch(ctx context.Context, log zerolog.Logger, kind string, db *Database, dest string, interval time.Duration, fn itemFunc) (*BatchResult, error) {
	res := &BatchResult{Failed: map[string]error{}, Files: map[string]string{}}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return res, fmt.Errorf("%w: %w", ErrDestination, err)
	}

	total := db.Len()
	log.Info().Int("count", total).Str("dest", dest).Msgf("downloading %s", kind)

	var pacer *pace.Pacer
	if total > 1 {
		pacer = pace.New(interval)
	}

	var stopErr error
	db.Each(func(i int, rec *VideoRecord) bool {
		if err := pacer.Wait(ctx); err != nil {
			stopErr = err
			return false
		}
		log.Info().Msgf("[%d/%d] %s %s", i+1, total, rec.ID, rec.Title)

		path, err := fn(ctx, rec, dest)
		switch {
		case err == nil:
			res.Done = append(res.Done, rec.ID)
			res.Files[rec.ID] = path
			log.Info().Str("file", path).Msg("saved")
		case ctx.Err() != nil:
			stopErr = ctx.Err()
			return false
		case errors.Is(err, ErrSkipped):
			res.Skipped = append(res.Skipped, rec.ID)
			log.Warn().Err(err).Str("id", rec.ID).Msg("skipped")
		default:
			res.Failed[rec.ID] = err
			log.Error().Err(err).Str("id", rec.ID).Msg("failed")
		}
		return true
	})

	if stopErr != nil {
		return res, stopErr
	}
	return res, res.Err(kind)
}
