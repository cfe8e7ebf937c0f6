package nico

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	httpclient "nicotools/http"
	"nicotools/internal/retry"
	"nicotools/internal/storage"
)

// ThumbnailOptions configures a ThumbnailFetcher.
type ThumbnailOptions struct {
	Logger zerolog.Logger
	// Large tries the large image before the plain one.
	Large bool
}

// ThumbnailFetcher downloads thumbnail images. Thumbnails are public, so it
// uses its own cookie-less client.
type ThumbnailFetcher struct {
	client *httpclient.Client
	opts   ThumbnailOptions
	log    zerolog.Logger
}

// NewThumbnailFetcher derives a short-timeout client from base, which may be nil.
func NewThumbnailFetcher(base *httpclient.Config, opts ThumbnailOptions) *ThumbnailFetcher {
	return &ThumbnailFetcher{
		client: httpclient.New(thumbnailConfig(base)),
		opts:   opts,
		log:    opts.Logger.With().Str("component", "thumbnail").Logger(),
	}
}

func thumbnailConfig(base *httpclient.Config) *httpclient.Config {
	cfg := httpclient.DefaultConfig()
	if base != nil {
		c := *base
		cfg = &c
	}
	cfg.ConnectTimeout = 5 * time.Second
	cfg.Timeout = 10 * time.Second
	cfg.ReadTimeout = 10 * time.Second
	// The size ladder is the retry policy.
	cfg.Retry = retry.None()
	return cfg
}

// Run downloads the thumbnail of every record of db into dest.
func (f *ThumbnailFetcher) Run(ctx context.Context, db *Database, dest string) (*BatchResult, error) {
	return runBatch(ctx, f.log, "thumbnail", db, dest, 0, f.fetch)
}

func (f *ThumbnailFetcher) tiers(base string) []string {
	if f.opts.Large {
		return []string{base + ".L", base}
	}
	return []string{base}
}

func (f *ThumbnailFetcher) fetch(ctx context.Context, rec *VideoRecord, dest string) (string, error) {
	if rec.ThumbnailURL == "" {
		return "", fmt.Errorf("%w: no thumbnail address", ErrSkipped)
	}
	tiers := f.tiers(rec.ThumbnailURL)

	var image []byte
	err := attemptLoop(ctx, len(tiers), 0, func(ctx context.Context, i int) (outcome, error) {
		resp, err := f.client.Get(ctx, tiers[i])
		if err == nil {
			image = resp.Body
			return outcomeDone, nil
		}
		if ctx.Err() != nil {
			return outcomeGiveUp, ctx.Err()
		}
		last := i == len(tiers)-1
		if !last && (httpclient.IsNotFound(err) || httpclient.IsTransientHTTPError(err)) {
			f.log.Debug().Err(err).Str("id", rec.ID).Msg("large thumbnail unavailable, trying plain size")
			return outcomeFallback, err
		}
		return outcomeGiveUp, fmt.Errorf("%w: %w", ErrSkipped, err)
	})
	if err != nil {
		return "", err
	}

	path := outputPath(dest, rec.ID, rec.Title, "jpg")
	if err := storage.WriteFile(path, image); err != nil {
		return "", err
	}
	return path, nil
}
