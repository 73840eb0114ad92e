package model

// Attribute is a named text role within a message.
type Attribute string

const (
	Text     Attribute = "text"
	Response Attribute = "response"
	Intent   Attribute = "intent"
)

// Attributes lists every attribute a message may carry.
var Attributes = []Attribute{Text, Response, Intent}

// DenseFeaturizableAttributes are the attributes that get a dense feature
// matrix. Intent labels are tokenized but never vectorized.
var DenseFeaturizableAttributes = []Attribute{Text, Response}

type keyKind int

const (
	kindText keyKind = iota
	kindTokens
	kindTokenVectors
	kindDenseFeatures
)

// TextKey is the field holding an attribute's raw content.
func TextKey(a Attribute) string { return string(a) }

// TokensKey is the field holding an attribute's WordPiece tokens.
func TokensKey(a Attribute) string {
	if a == Text {
		return "tokens"
	}
	return string(a) + "_tokens"
}

// TokenVectorsKey is the field holding an attribute's per-token vectors.
func TokenVectorsKey(a Attribute) string {
	if a == Text {
		return "token_vectors"
	}
	return string(a) + "_token_vectors"
}

// DenseFeaturesKey is the field holding an attribute's dense feature matrix.
// It depends only on the attribute, so repeated writes overwrite.
func DenseFeaturesKey(a Attribute) string {
	return string(a) + "_dense_features"
}

type fieldRef struct {
	kind keyKind
	attr Attribute
}

var fieldsByKey = func() map[string]fieldRef {
	m := make(map[string]fieldRef, 4*len(Attributes))
	for _, a := range Attributes {
		m[TextKey(a)] = fieldRef{kindText, a}
		m[TokensKey(a)] = fieldRef{kindTokens, a}
		m[TokenVectorsKey(a)] = fieldRef{kindTokenVectors, a}
		m[DenseFeaturesKey(a)] = fieldRef{kindDenseFeatures, a}
	}
	return m
}()
