package observer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/calliope-io/herald/log"
	"github.com/calliope-io/herald/metrics"
	"github.com/calliope-io/herald/track"
)

// IngestErrorKind classifies ingestion errors.
type IngestErrorKind int

const (
	// IngestErrorStream indicates a frame/stream error (watcher crash outcome).
	IngestErrorStream IngestErrorKind = iota
	// IngestErrorCanceled indicates context cancellation.
	IngestErrorCanceled
)

// IngestError classifies ingestion failures for outcome determination.
type IngestError struct {
	Kind IngestErrorKind
	Err  error
}

func (e *IngestError) Error() string {
	return e.Err.Error()
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if the error is a frame/stream error.
func IsStreamError(err error) bool {
	var ingErr *IngestError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestErrorStream
	}
	return false
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	var ingErr *IngestError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestErrorCanceled
	}
	return false
}

// SnapshotHandler receives each observed track snapshot in stream order.
type SnapshotHandler func(track.Snapshot)

// Ingestor reads the watcher event stream and dispatches track snapshots.
//
// Frames are read in order. Invalid framing is fatal (no resync). Malformed
// event payloads are counted and skipped so one bad event cannot take down
// the stream. Unknown commands are skipped silently.
type Ingestor struct {
	decoder   *FrameDecoder
	handler   SnapshotHandler
	logger    *log.Logger
	collector *metrics.Collector
}

// NewIngestor creates an ingestor reading frames from r.
func NewIngestor(r io.Reader, handler SnapshotHandler, logger *log.Logger, collector *metrics.Collector) *Ingestor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Ingestor{
		decoder:   NewFrameDecoder(r),
		handler:   handler,
		logger:    logger,
		collector: collector,
	}
}

// Run runs the ingestion loop until EOF or fatal error.
// Returns:
//   - nil: stream ended cleanly (EOF)
//   - *IngestError with Kind=IngestErrorStream: frame/stream error
//   - *IngestError with Kind=IngestErrorCanceled: context canceled
func (g *Ingestor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return &IngestError{
				Kind: IngestErrorCanceled,
				Err:  ctx.Err(),
			}
		default:
		}

		payload, err := g.decoder.ReadFrame()
		if err != nil {
			// A cancel mid-run usually surfaces here, not in the select:
			// the loop is blocked in ReadFrame and killing the watcher
			// ends its stdout with EOF or a short read. Cancellation wins
			// over whatever the dying pipe returned.
			if ctx.Err() != nil {
				return &IngestError{
					Kind: IngestErrorCanceled,
					Err:  ctx.Err(),
				}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			g.logger.Error("frame error", map[string]any{
				"error": err.Error(),
			})
			return &IngestError{
				Kind: IngestErrorStream,
				Err:  fmt.Errorf("frame error: %w", err),
			}
		}

		g.processPayload(payload)
	}
}

// processPayload decodes one frame payload and dispatches the event.
func (g *Ingestor) processPayload(payload []byte) {
	decoded, err := DecodeEvent(payload)
	if err != nil {
		g.logger.Warn("skipping malformed event", map[string]any{
			"error": err.Error(),
		})
		g.collector.IncDecodeError()
		return
	}

	switch event := decoded.(type) {
	case *TrackUpdateEvent:
		g.handler(event.Snapshot())
	case *LogEvent:
		g.forwardLog(event)
	case *UnknownEvent:
		g.logger.Debug("ignoring unknown event", map[string]any{
			"cmd": event.Cmd,
		})
	}
}

// forwardLog relays a watcher diagnostic into the host logger.
func (g *Ingestor) forwardLog(event *LogEvent) {
	fields := map[string]any{"source": "watcher"}
	switch event.Level {
	case "debug":
		g.logger.Debug(event.Message, fields)
	case "warn":
		g.logger.Warn(event.Message, fields)
	case "error":
		g.logger.Error(event.Message, fields)
	default:
		g.logger.Info(event.Message, fields)
	}
}
