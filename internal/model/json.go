package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// messageJSON is the NDJSON wire shape of a message. Per-token vectors are
// an intermediate product and are not serialized.
type messageJSON struct {
	ID                    string   `json:"id,omitempty"`
	Text                  string   `json:"text,omitempty"`
	Response              string   `json:"response,omitempty"`
	Intent                string   `json:"intent,omitempty"`
	Tokens                []string `json:"tokens,omitempty"`
	ResponseTokens        []string `json:"response_tokens,omitempty"`
	IntentTokens          []string `json:"intent_tokens,omitempty"`
	TextDenseFeatures     Matrix   `json:"text_dense_features,omitempty"`
	ResponseDenseFeatures Matrix   `json:"response_dense_features,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Message) MarshalJSON() ([]byte, error) {
	m.mu.Lock()
	w := messageJSON{
		ID:                    m.ID,
		Text:                  m.text[Text],
		Response:              m.text[Response],
		Intent:                m.text[Intent],
		Tokens:                m.tokens[Text],
		ResponseTokens:        m.tokens[Response],
		IntentTokens:          m.tokens[Intent],
		TextDenseFeatures:     m.dense[Text],
		ResponseDenseFeatures: m.dense[Response],
	}
	m.mu.Unlock()
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. A message without an id gets a
// fresh one.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	m.ID = w.ID
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	for a, s := range map[Attribute]string{Text: w.Text, Response: w.Response, Intent: w.Intent} {
		if s != "" {
			m.SetText(a, s)
		}
	}
	for a, t := range map[Attribute][]string{Text: w.Tokens, Response: w.ResponseTokens, Intent: w.IntentTokens} {
		if t != nil {
			m.SetTokens(a, t)
		}
	}
	if w.TextDenseFeatures != nil {
		m.SetDenseFeatures(Text, w.TextDenseFeatures)
	}
	if w.ResponseDenseFeatures != nil {
		m.SetDenseFeatures(Response, w.ResponseDenseFeatures)
	}
	return nil
}
