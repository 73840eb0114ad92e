package multi

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crimson-sun/densefeat/internal/model"
	"github.com/crimson-sun/densefeat/internal/output/stdout"
)

// mockOutput records calls for test assertions.
type mockOutput struct {
	msgs   []*model.Message
	closed bool
	err    error // if set, Write and Close return this error
}

func (m *mockOutput) Write(_ context.Context, msg *model.Message) error {
	m.msgs = append(m.msgs, msg)
	return m.err
}

func (m *mockOutput) Close() error {
	m.closed = true
	return m.err
}

func TestFanOutDeliversToAll(t *testing.T) {
	a, b, c := &mockOutput{}, &mockOutput{}, &mockOutput{}
	m := New(a, b, c)

	msg := model.NewMessage("play some jazz")
	if err := m.Write(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, out := range []*mockOutput{a, b, c} {
		if len(out.msgs) != 1 {
			t.Fatalf("output %d: got %d messages, want 1", i, len(out.msgs))
		}
		if out.msgs[0].ID != msg.ID {
			t.Errorf("output %d: got message %s, want %s", i, out.msgs[0].ID, msg.ID)
		}
	}
}

func TestErrorDoesNotPreventDelivery(t *testing.T) {
	failing := &mockOutput{err: errors.New("disk full")}
	healthy := &mockOutput{}
	m := New(failing, healthy)

	err := m.Write(context.Background(), model.NewMessage("x"))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected disk full error, got %v", err)
	}
	if len(healthy.msgs) != 1 {
		t.Fatalf("healthy output got %d messages, want 1", len(healthy.msgs))
	}
	if len(failing.msgs) != 1 {
		t.Fatalf("failing output got %d messages, want 1", len(failing.msgs))
	}
}

func TestCloseCollectsErrors(t *testing.T) {
	a := &mockOutput{err: errors.New("err-a")}
	b := &mockOutput{err: errors.New("err-b")}
	m := New(a, b)

	err := m.Close()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "err-a") || !strings.Contains(err.Error(), "err-b") {
		t.Errorf("expected both errors, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("Close should be called on all outputs even when errors occur")
	}
}

func TestNilOutputsSkipped(t *testing.T) {
	inner := &mockOutput{}
	m := New(nil, inner, nil)
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	if err := m.Write(context.Background(), model.NewMessage("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWithStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockOutput{}
	m := New(stdout.NewWriter(&buf, false), rec)

	msg := model.NewMessage("hello")
	msg.SetDenseFeatures(model.Text, model.Matrix{{1, 2}})
	if err := m.Write(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"text_dense_features":[[1,2]]`) {
		t.Errorf("stdout output missing features: %s", buf.String())
	}
	if len(rec.msgs) != 1 {
		t.Errorf("recorder got %d messages, want 1", len(rec.msgs))
	}
}
