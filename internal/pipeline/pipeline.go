package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/densefeat/internal/input"
	"github.com/crimson-sun/densefeat/internal/model"
	"github.com/crimson-sun/densefeat/internal/output"
)

// Processor runs the featurization stages. *engine.Engine satisfies it.
type Processor interface {
	Process(msg *model.Message) error
	Train(msgs []*model.Message) error
}

// Stats counts messages seen by a pipeline run.
type Stats struct {
	Read    int64
	Written int64
	Failed  int64 // messages with a processing or write error
}

// Pipeline connects a message source, the processor, and an output.
type Pipeline struct {
	source input.Source
	proc   Processor
	out    output.Output

	batchWindow  time.Duration
	batchMaxSize int

	read    atomic.Int64
	written atomic.Int64
	failed  atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatching makes Stream collect messages for up to window (or until
// maxSize are pending) and featurize them as one batch. maxSize 0 means no
// size limit.
func WithBatching(window time.Duration, maxSize int) Option {
	return func(p *Pipeline) {
		p.batchWindow = window
		p.batchMaxSize = maxSize
	}
}

// New creates a Pipeline from the given components.
func New(src input.Source, proc Processor, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{source: src, proc: proc, out: out}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns the counts so far.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Read:    p.read.Load(),
		Written: p.written.Load(),
		Failed:  p.failed.Load(),
	}
}

// Train reads the whole input, featurizes it as one batch, and writes every
// message. Messages whose featurization failed are still written with
// whatever features were attached.
func (p *Pipeline) Train(ctx context.Context) (Stats, error) {
	msgs, err := p.source.ReadAll(ctx)
	if err != nil {
		return p.Stats(), fmt.Errorf("pipeline train: %w", err)
	}
	p.read.Add(int64(len(msgs)))

	p.processBatch(ctx, msgs)
	return p.Stats(), ctx.Err()
}

// Stream featurizes messages as they arrive. Blocks until the source is
// exhausted or ctx is cancelled. A failing message is logged and counted,
// and the stream continues.
func (p *Pipeline) Stream(ctx context.Context) (Stats, error) {
	ch, err := p.source.Stream(ctx)
	if err != nil {
		return p.Stats(), fmt.Errorf("pipeline stream: %w", err)
	}

	if p.batchWindow > 0 {
		err = p.streamBatched(ctx, ch)
	} else {
		err = p.streamDirect(ctx, ch)
	}
	if err == nil {
		err = sourceErr(p.source)
	}
	return p.Stats(), err
}

func (p *Pipeline) streamDirect(ctx context.Context, ch <-chan *model.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			p.read.Add(1)
			failed := false
			if err := p.proc.Process(msg); err != nil {
				slog.Warn("featurization failed", "message", msg.ID, "error", err)
				failed = true
			}
			if !p.write(ctx, msg) {
				failed = true
			}
			if failed {
				p.failed.Add(1)
			}
		}
	}
}

func (p *Pipeline) streamBatched(ctx context.Context, ch <-chan *model.Message) error {
	buf := newStreamBuffer(p.batchWindow, p.batchMaxSize)
	for {
		select {
		case <-ctx.Done():
			// Featurize what was already read so it is not lost.
			p.processBatch(context.WithoutCancel(ctx), buf.flush())
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				p.processBatch(ctx, buf.flush())
				return nil
			}
			p.read.Add(1)
			if buf.add(msg) {
				p.processBatch(ctx, buf.flush())
			}
		case <-buf.flushCh():
			p.processBatch(ctx, buf.flush())
		}
	}
}

// processBatch trains on msgs and writes them. Failures that name their
// message count against that message only; a failure that names none counts
// against the whole batch.
func (p *Pipeline) processBatch(ctx context.Context, msgs []*model.Message) {
	if len(msgs) == 0 {
		return
	}

	var failedIDs map[string]bool
	batchFailed := false
	if err := p.proc.Train(msgs); err != nil {
		failedIDs = model.FailedMessages(err)
		batchFailed = len(failedIDs) == 0
		slog.Warn("batch featurization failed",
			"messages", len(msgs), "failed", len(failedIDs), "error", err)
	}

	for _, msg := range msgs {
		ok := p.write(ctx, msg)
		if !ok || batchFailed || failedIDs[msg.ID] {
			p.failed.Add(1)
		}
	}
}

func (p *Pipeline) write(ctx context.Context, msg *model.Message) bool {
	if err := p.out.Write(ctx, msg); err != nil {
		slog.Warn("output write failed", "message", msg.ID, "error", err)
		return false
	}
	p.written.Add(1)
	return true
}

// sourceErr reports a read error that ended a stream early, for sources
// that track one.
func sourceErr(src input.Source) error {
	if s, ok := src.(interface{ Err() error }); ok {
		if err := s.Err(); err != nil {
			return fmt.Errorf("pipeline stream: %w", err)
		}
	}
	return nil
}

// Close shuts down the output and logs a summary of the run.
func (p *Pipeline) Close() error {
	s := p.Stats()
	if s.Failed > 0 {
		slog.Warn("pipeline finished with failures", "read", s.Read, "written", s.Written, "failed", s.Failed)
	} else {
		slog.Info("pipeline finished", "read", s.Read, "written", s.Written)
	}

	var errs []error
	if err := p.out.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	if c, ok := p.source.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input: %w", err))
		}
	}
	return errors.Join(errs...)
}
