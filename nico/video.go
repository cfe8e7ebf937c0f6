package nico

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	httpclient "nicotools/http"
	"nicotools/internal/storage"
)

const (
	videoInterval = time.Second
	chunkSize     = 50 * 1024
)

// VideoFetcher downloads content streams.
type VideoFetcher struct {
	client    *httpclient.Client
	endpoints Endpoints
	opts      FetchOptions
	log       zerolog.Logger
}

func NewVideoFetcher(s *Session, opts FetchOptions) *VideoFetcher {
	return &VideoFetcher{
		client:    s.Client,
		endpoints: s.Endpoints,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "video").Logger(),
	}
}

// Run downloads every record of db into dest.
func (f *VideoFetcher) Run(ctx context.Context, db *Database, dest string) (*BatchResult, error) {
	return runBatch(ctx, f.log, "video", db, dest, f.opts.interval(videoInterval), f.fetch)
}

func (f *VideoFetcher) fetch(ctx context.Context, rec *VideoRecord, dest string) (string, error) {
	t, params, err := prepare(ctx, f.client, f.endpoints, rec, f.opts.lock(), f.log)
	if err != nil {
		return "", err
	}

	// The stream host only serves clients that have visited the watch page.
	if _, err := f.client.Get(ctx, f.endpoints.Watch+t.DisplayID); err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}

	stream, err := f.client.Stream(ctx, params.VideoURL, nil)
	if err != nil {
		return "", fmt.Errorf("video stream: %w", err)
	}
	defer stream.Body.Close()

	size := stream.ContentLength
	if size <= 0 {
		size = rec.SizeLow
		if params.IsPremium {
			size = rec.SizeHigh
		}
	}

	ext := rec.MovieType
	if ext == "" {
		ext = "flv"
	}
	path := outputPath(dest, t.DisplayID, rec.Title, ext)
	f.log.Debug().Str("id", t.DisplayID).Int64("size", size).Str("file", path).Msg("streaming")

	w, err := storage.NewAtomicWriter(path)
	if err != nil {
		return "", err
	}
	if err := copyChunks(w, stream.Body, f.opts.Progress, t.DisplayID, size); err != nil {
		w.Abort()
		return "", err
	}
	if err := w.Commit(); err != nil {
		return "", err
	}
	f.log.Debug().Str("id", t.DisplayID).Int64("bytes", w.Written()).Msg("stored")
	return w.Path(), nil
}

// copyChunks reads src in fixed-size chunks, reporting the running total to
// sink when it is set.
func copyChunks(dst io.Writer, src io.Reader, sink ProgressSink, label string, total int64) error {
	if sink != nil {
		sink.Start(label, total)
		defer sink.Finish()
	}

	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if sink != nil {
				sink.Update(written)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("video stream: %w", err)
		}
	}
}
