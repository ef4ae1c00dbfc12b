package duplex

import (
	"fmt"
	"log/slog"

	"github.com/overdub-audio/duplex-go/wavio"
)

func newSinkWriter(path string, sampleRate, channels int) (*wavio.Writer, error) {
	return wavio.NewWriter(path, sampleRate, channels)
}

// StartFileRecording opens a WAV file sink at path for the active duplex
// recording session. While the sink is open, captured frames are written to
// the file and live delivery to the registered consumer is suppressed (the
// two delivery paths are mutually exclusive).
//
// The sink uses the session's negotiated sample rate and channel count, so
// a duplex recording session must be active. A failure to open the sink is
// returned to the caller and does not affect the running session.
func (e *Engine) StartFileRecording(path string) error {
	e.muCtl.Lock()
	defer e.muCtl.Unlock()

	if Mode(e.mode.Load()) != ModeDuplexRecord {
		return ErrNotRecording
	}

	e.muSink.Lock()
	defer e.muSink.Unlock()
	if e.sink != nil {
		return ErrSinkOpen
	}

	w, err := newSinkWriter(path, int(e.sampleRate.Load()), int(e.channels.Load()))
	if err != nil {
		return fmt.Errorf("open recording sink: %w", err)
	}
	e.sink = w

	e.logger.Info("file recording started", slog.String("path", path))
	return nil
}

// StopFileRecording finalizes the sink's container header and closes the
// file. Live consumer delivery resumes for subsequent frames.
func (e *Engine) StopFileRecording() error {
	e.muCtl.Lock()
	defer e.muCtl.Unlock()
	return e.closeSink()
}

func (e *Engine) closeSink() error {
	e.muSink.Lock()
	sink := e.sink
	e.sink = nil
	e.muSink.Unlock()

	if sink == nil {
		return nil
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("close recording sink: %w", err)
	}
	e.logger.Info("file recording stopped")
	return nil
}
