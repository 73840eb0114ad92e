package input

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/crimson-sun/densefeat/internal/model"
)

// maxLineSize bounds a single NDJSON line. Lines carrying pre-existing dense
// features for long texts get large.
const maxLineSize = 16 * 1024 * 1024

// Source yields messages to featurize.
type Source interface {
	// Stream sends messages as they are decoded and closes the channel at
	// end of input or when ctx is cancelled.
	Stream(ctx context.Context) (<-chan *model.Message, error)

	// ReadAll decodes the whole input.
	ReadAll(ctx context.Context) ([]*model.Message, error)
}

// Reader decodes NDJSON messages, one per line. Blank lines are ignored and
// malformed lines are logged and skipped.
type Reader struct {
	r         io.Reader
	closer    io.Closer
	name      string
	malformed atomic.Int64

	mu  sync.Mutex
	err error // read error that ended the last Stream
}

// NewReader reads messages from r. name labels log records.
func NewReader(r io.Reader, name string) *Reader {
	rd := &Reader{r: r, name: name}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Open returns a Reader for path: "-" is stdin, an http(s) URL is fetched
// with token as bearer credential, anything else is a local file.
func Open(ctx context.Context, path, token string) (*Reader, error) {
	switch {
	case path == "-" || path == "":
		return &Reader{r: os.Stdin, name: "stdin"}, nil
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		body, err := NewFetcher(token).Fetch(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		return NewReader(body, path), nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		return NewReader(f, path), nil
	}
}

// Malformed reports how many lines could not be decoded so far.
func (r *Reader) Malformed() int64 { return r.malformed.Load() }

// Err returns the read error that ended the last Stream early, if any.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Stream implements Source.
func (r *Reader) Stream(ctx context.Context) (<-chan *model.Message, error) {
	ch := make(chan *model.Message)
	go func() {
		defer close(ch)
		err := r.scan(func(msg *model.Message) bool {
			select {
			case ch <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil {
			slog.Error("input read failed", "source", r.name, "error", err)
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
		}
	}()
	return ch, nil
}

// ReadAll implements Source.
func (r *Reader) ReadAll(ctx context.Context) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.scan(func(msg *model.Message) bool {
		msgs = append(msgs, msg)
		return ctx.Err() == nil
	})
	if err != nil {
		return msgs, fmt.Errorf("input %s: %w", r.name, err)
	}
	if err := ctx.Err(); err != nil {
		return msgs, err
	}
	return msgs, nil
}

// Close releases the underlying file or response body.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// scan decodes lines and hands each message to emit until emit returns
// false or input ends.
func (r *Reader) scan(emit func(*model.Message) bool) error {
	sc := bufio.NewScanner(r.r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		msg := new(model.Message)
		if err := json.Unmarshal(b, msg); err != nil {
			r.malformed.Add(1)
			slog.Warn("skipping malformed input line", "source", r.name, "line", line, "error", err)
			continue
		}
		if !emit(msg) {
			return nil
		}
	}
	return sc.Err()
}
