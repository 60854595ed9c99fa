// Package memory is an in-process implementation of the media boundary. It
// keeps appended chunks and buffered ranges in memory and is used by the
// headless player and by tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"hlsengine/internal/media"
)

// Backend creates in-memory media sources.
type Backend struct {
	// OpenDelay postpones the "open" notification after Attach.
	OpenDelay time.Duration
	// Unsupported lists MIME type prefixes AddSourceBuffer rejects.
	Unsupported []string
	// AppendHook, if set, runs before every append. A non-nil error fails
	// the append.
	AppendHook func(mimeType string, c media.Chunk) error
	// ManualReadyState stops appends from raising the element's ready state;
	// it then changes only through Element.SetReadyState.
	ManualReadyState bool

	mu      sync.Mutex
	sources []*MediaSource
}

// NewMediaSource implements media.Backend.
func (b *Backend) NewMediaSource() media.MediaSource {
	ms := &MediaSource{backend: b, state: media.SourceClosed, duration: math.NaN()}
	b.mu.Lock()
	b.sources = append(b.sources, ms)
	b.mu.Unlock()
	return ms
}

// Sources returns every media source created so far.
func (b *Backend) Sources() []*MediaSource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MediaSource(nil), b.sources...)
}

// MediaSource implements media.MediaSource.
type MediaSource struct {
	backend *Backend

	mu       sync.Mutex
	state    media.SourceState
	element  *Element
	duration float64
	buffers  []*SourceBuffer
}

// Attach implements media.MediaSource.
func (m *MediaSource) Attach(ctx context.Context, el media.Element) error {
	e, ok := el.(*Element)
	if !ok {
		return fmt.Errorf("memory: cannot attach to %T", el)
	}
	if d := m.backend.OpenDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.element = e
	m.state = media.SourceOpen
	m.mu.Unlock()
	return nil
}

// State implements media.MediaSource.
func (m *MediaSource) State() media.SourceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AddSourceBuffer implements media.MediaSource.
func (m *MediaSource) AddSourceBuffer(mimeType string) (media.SourceBuffer, error) {
	for _, prefix := range m.backend.Unsupported {
		if strings.HasPrefix(mimeType, prefix) {
			return nil, fmt.Errorf("memory: unsupported type %q", mimeType)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != media.SourceOpen {
		return nil, media.ErrNotOpen
	}
	sb := &SourceBuffer{source: m, mimeType: mimeType}
	m.buffers = append(m.buffers, sb)
	return sb, nil
}

// Buffers returns the source buffers in creation order.
func (m *MediaSource) Buffers() []*SourceBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*SourceBuffer(nil), m.buffers...)
}

// Duration implements media.MediaSource.
func (m *MediaSource) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

// SetDuration implements media.MediaSource.
func (m *MediaSource) SetDuration(d float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != media.SourceOpen {
		return media.ErrNotOpen
	}
	m.duration = d
	return nil
}

// EndOfStream implements media.MediaSource.
func (m *MediaSource) EndOfStream() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != media.SourceOpen {
		return media.ErrNotOpen
	}
	m.state = media.SourceEnded
	return nil
}

// SourceBuffer implements media.SourceBuffer.
type SourceBuffer struct {
	source   *MediaSource
	mimeType string

	mu       sync.Mutex
	chunks   []media.Chunk
	buffered []media.TimeRange
	bytes    int64
}

// MimeType returns the type the buffer was created with.
func (s *SourceBuffer) MimeType() string {
	return s.mimeType
}

// Append implements media.SourceBuffer.
func (s *SourceBuffer) Append(ctx context.Context, c media.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if hook := s.source.backend.AppendHook; hook != nil {
		if err := hook(s.mimeType, c); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, c)
	s.bytes += int64(len(c.Data))
	if !c.Init && c.Duration > 0 {
		s.buffered = media.AddRange(s.buffered, media.TimeRange{Start: c.Start, End: c.Start + c.Duration}, 0.01)
	}
	s.mu.Unlock()

	if !c.Init && !s.source.backend.ManualReadyState {
		s.source.mu.Lock()
		el := s.source.element
		s.source.mu.Unlock()
		if el != nil {
			el.raiseReadyState(media.HaveMetadata)
		}
	}
	return nil
}

// Buffered implements media.SourceBuffer.
func (s *SourceBuffer) Buffered() []media.TimeRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]media.TimeRange(nil), s.buffered...)
}

// Remove implements media.SourceBuffer.
func (s *SourceBuffer) Remove(ctx context.Context, start, end float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffered = media.RemoveRange(s.buffered, start, end)
	return nil
}

// Chunks returns every chunk appended so far.
func (s *SourceBuffer) Chunks() []media.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]media.Chunk(nil), s.chunks...)
}

// Bytes returns the total number of bytes appended.
func (s *SourceBuffer) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}
