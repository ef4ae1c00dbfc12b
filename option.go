package duplex

import (
	"log/slog"
	"time"

	"github.com/overdub-audio/duplex-go/hw"
)

type engineOptions struct {
	logger        *slog.Logger
	opener        hw.Opener
	pcmRingBytes  int
	metaRingBytes int
	wakeInterval  time.Duration
}

type Option func(opts *engineOptions)

func withDefaults() Option {
	return withOptions(
		WithLogger(slog.Default()),
		WithRingSizes(1<<20, 1<<16),
		WithWorkerWakeInterval(50*time.Millisecond),
	)
}

func withOptions(os ...Option) Option {
	return func(opts *engineOptions) {
		for _, o := range os {
			o(opts)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *engineOptions) {
		opts.logger = logger
	}
}

// WithStreamOpener installs the hardware stream opener used by
// StartDuplexRecording and StartPlaybackReview.
func WithStreamOpener(opener hw.Opener) Option {
	return func(opts *engineOptions) {
		opts.opener = opener
	}
}

// WithRingSizes sets the byte capacities of the payload and metadata rings.
// The rings are allocated once at engine construction and cleared, never
// reallocated, on session stop.
func WithRingSizes(pcmBytes, metaBytes int) Option {
	return func(opts *engineOptions) {
		opts.pcmRingBytes = pcmBytes
		opts.metaRingBytes = metaBytes
	}
}

// WithWorkerWakeInterval bounds how long the dispatch worker sleeps without
// a wake signal before re-checking the rings.
func WithWorkerWakeInterval(d time.Duration) Option {
	return func(opts *engineOptions) {
		opts.wakeInterval = d
	}
}
