package densefeat

// Input is a message to featurize. Dense feature fields carry matrices from
// upstream featurizers; they must have one row per token plus one.
type Input struct {
	Text                  string      `json:"text,omitempty"`
	Response              string      `json:"response,omitempty"`
	Intent                string      `json:"intent,omitempty"`
	TextDenseFeatures     [][]float32 `json:"text_dense_features,omitempty"`
	ResponseDenseFeatures [][]float32 `json:"response_dense_features,omitempty"`
}

// Features are the outputs for one attribute. Dense has len(Tokens)+1 rows;
// the last row is the pooled summary. Both are nil when the attribute had
// no text.
type Features struct {
	Tokens []string    `json:"tokens,omitempty"`
	Dense  [][]float32 `json:"dense,omitempty"`
}

// Result is the stable public view of a featurized message.
type Result struct {
	ID           string   `json:"id"`
	Text         Features `json:"text"`
	Response     Features `json:"response"`
	IntentTokens []string `json:"intent_tokens,omitempty"`
}
