package model

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Message is a unit of text flowing through the pipeline: raw content per
// attribute plus whatever tokens and features earlier stages attached.
// Safe for concurrent use; each accessor takes the message lock.
type Message struct {
	ID string

	mu           sync.Mutex
	text         map[Attribute]string
	tokens       map[Attribute][]string
	tokenVectors map[Attribute]Matrix
	dense        map[Attribute]Matrix
}

// NewMessage creates a message with a fresh ID and the given primary text.
func NewMessage(text string) *Message {
	m := &Message{ID: uuid.NewString()}
	if text != "" {
		m.SetText(Text, text)
	}
	return m
}

// Text returns the raw content of an attribute ("" when unset).
func (m *Message) Text(a Attribute) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text[a]
}

// SetText sets the raw content of an attribute.
func (m *Message) SetText(a Attribute, s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.text == nil {
		m.text = make(map[Attribute]string)
	}
	m.text[a] = s
}

// Tokens returns the attribute's tokens, if any stage set them.
func (m *Message) Tokens(a Attribute) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[a]
	return t, ok
}

// SetTokens stores the attribute's tokens.
func (m *Message) SetTokens(a Attribute, tokens []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = make(map[Attribute][]string)
	}
	m.tokens[a] = tokens
}

// TokenVectors returns the attribute's per-token vectors, if present.
func (m *Message) TokenVectors(a Attribute) (Matrix, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tokenVectors[a]
	return v, ok
}

// SetTokenVectors stores the attribute's per-token vectors.
func (m *Message) SetTokenVectors(a Attribute, v Matrix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokenVectors == nil {
		m.tokenVectors = make(map[Attribute]Matrix)
	}
	m.tokenVectors[a] = v
}

// DenseFeatures returns the attribute's dense feature matrix, if present.
func (m *Message) DenseFeatures(a Attribute) (Matrix, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.dense[a]
	return f, ok
}

// SetDenseFeatures replaces the attribute's dense feature matrix.
func (m *Message) SetDenseFeatures(a Attribute, f Matrix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setDenseLocked(a, f)
}

// UpdateDenseFeatures reads the attribute's current dense features, passes
// them to fn, and stores fn's result, all under the message lock. If fn
// returns an error nothing is stored. fn must not call back into m.
func (m *Message) UpdateDenseFeatures(a Attribute, fn func(existing Matrix, ok bool) (Matrix, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.dense[a]
	updated, err := fn(existing, ok)
	if err != nil {
		return err
	}
	m.setDenseLocked(a, updated)
	return nil
}

func (m *Message) setDenseLocked(a Attribute, f Matrix) {
	if m.dense == nil {
		m.dense = make(map[Attribute]Matrix)
	}
	m.dense[a] = f
}

// Get returns the field stored under key. Keys are the names produced by
// TextKey, TokensKey, TokenVectorsKey and DenseFeaturesKey.
func (m *Message) Get(key string) (any, bool) {
	ref, known := fieldsByKey[key]
	if !known {
		return nil, false
	}
	switch ref.kind {
	case kindText:
		s := m.Text(ref.attr)
		return s, s != ""
	case kindTokens:
		return m.Tokens(ref.attr)
	case kindTokenVectors:
		return m.TokenVectors(ref.attr)
	default:
		return m.DenseFeatures(ref.attr)
	}
}

// Set stores value under key. The value's type must match the field.
func (m *Message) Set(key string, value any) error {
	ref, known := fieldsByKey[key]
	if !known {
		return fmt.Errorf("message: unknown field %q", key)
	}
	switch ref.kind {
	case kindText:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("message: field %q wants string, got %T", key, value)
		}
		m.SetText(ref.attr, s)
	case kindTokens:
		t, ok := value.([]string)
		if !ok {
			return fmt.Errorf("message: field %q wants []string, got %T", key, value)
		}
		m.SetTokens(ref.attr, t)
	default:
		mat, ok := asMatrix(value)
		if !ok {
			return fmt.Errorf("message: field %q wants a matrix, got %T", key, value)
		}
		if ref.kind == kindTokenVectors {
			m.SetTokenVectors(ref.attr, mat)
		} else {
			m.SetDenseFeatures(ref.attr, mat)
		}
	}
	return nil
}

func asMatrix(v any) (Matrix, bool) {
	switch x := v.(type) {
	case Matrix:
		return x, true
	case [][]float32:
		return Matrix(x), true
	}
	return nil, false
}
