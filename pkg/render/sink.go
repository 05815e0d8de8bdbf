package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/MrCodeEU/facetrack/pkg/logging"
	"github.com/MrCodeEU/facetrack/pkg/session"
)

// FrameSource yields published frames; session.Mailbox implements it.
type FrameSource interface {
	Next(ctx context.Context) (*session.Frame, error)
}

// SnapshotSink is a headless display: each rendered frame replaces a PNG
// file atomically, so viewers never see a partial image.
type SnapshotSink struct {
	path     string
	renderer *Renderer
	written  uint64
}

// NewSnapshotSink creates a sink writing to path.
func NewSnapshotSink(path string, renderer *Renderer) *SnapshotSink {
	return &SnapshotSink{path: path, renderer: renderer}
}

// Path returns the snapshot file path.
func (s *SnapshotSink) Path() string {
	return s.path
}

// Written returns the number of snapshots written.
func (s *SnapshotSink) Written() uint64 {
	return s.written
}

// Write renders f and replaces the snapshot file.
func (s *SnapshotSink) Write(f *session.Frame) error {
	img, err := s.renderer.Render(f)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := renameio.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	s.written++
	return nil
}

// Consume writes every frame taken from src until it is closed or ctx ends.
// Frames that fail to render are logged and skipped.
func (s *SnapshotSink) Consume(ctx context.Context, src FrameSource) error {
	log := logging.Component("render").WithField("path", s.path)
	for {
		f, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if f == nil {
			log.WithField("written", s.written).Debug("Frame source closed")
			return nil
		}
		if err := s.Write(f); err != nil {
			log.WithError(err).WithField("seq", f.Seq).Warn("Failed to write snapshot")
		}
	}
}
