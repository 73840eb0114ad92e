package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a golden featurization case: token vectors and optional
// upstream features in, the merged dense matrix (or an error) out.
type CorpusEntry struct {
	Name         string      `json:"name"`
	Pooling      string      `json:"pooling"`
	TokenVectors [][]float32 `json:"token_vectors"`
	Existing     [][]float32 `json:"existing,omitempty"`
	Expected     [][]float32 `json:"expected,omitempty"`
	Error        string      `json:"error,omitempty"` // substring of the expected error
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}
