package embedder

const (
	maxSeqLen        = 128
	maxWordRunes     = 200
	unknownPiece     = "[UNK]"
	continuationMark = "##"
)

// encoding is one text's WordPiece tokens and their IDs, framed by [CLS]
// and [SEP]. ids is unpadded: len(ids) == len(pieces)+2.
type encoding struct {
	pieces []string
	ids    []int64
}

// batch is a set of encodings packed for the encoder. The flat slices are
// [size * seqLen], padded to the longest encoding.
type batch struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	size          int64
	seqLen        int64
	pieces        [][]string
}

// tokenizer performs BERT-style uncased WordPiece tokenization.
type tokenizer struct {
	vocab *vocab
}

func newTokenizer(vocabPath string) (*tokenizer, error) {
	v, err := loadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	return &tokenizer{vocab: v}, nil
}

// pieces splits text into WordPiece tokens without special tokens or
// truncation.
func (t *tokenizer) pieces(text string) []string {
	var out []string
	for _, word := range splitWords(normalize(text)) {
		out = append(out, t.wordpiece(word)...)
	}
	return out
}

// encode tokenizes text and truncates it so that [CLS] pieces [SEP] fits in
// maxSeqLen.
func (t *tokenizer) encode(text string) encoding {
	pieces := t.pieces(text)
	if len(pieces) > maxSeqLen-2 {
		pieces = pieces[:maxSeqLen-2]
	}

	ids := make([]int64, 0, len(pieces)+2)
	ids = append(ids, t.vocab.clsID)
	for _, p := range pieces {
		ids = append(ids, t.vocab.lookup(p))
	}
	ids = append(ids, t.vocab.sepID)
	return encoding{pieces: pieces, ids: ids}
}

// encodeBatch encodes texts and pads them to the longest sequence.
func (t *tokenizer) encodeBatch(texts []string) batch {
	if len(texts) == 0 {
		return batch{}
	}

	encs := make([]encoding, len(texts))
	var seqLen int
	for i, text := range texts {
		encs[i] = t.encode(text)
		seqLen = max(seqLen, len(encs[i].ids))
	}

	total := len(texts) * seqLen
	b := batch{
		inputIDs:      make([]int64, total),
		attentionMask: make([]int64, total),
		tokenTypeIDs:  make([]int64, total),
		size:          int64(len(texts)),
		seqLen:        int64(seqLen),
		pieces:        make([][]string, len(texts)),
	}
	for i, enc := range encs {
		off := i * seqLen
		for j, id := range enc.ids {
			b.inputIDs[off+j] = id
			b.attentionMask[off+j] = 1
		}
		for j := len(enc.ids); j < seqLen; j++ {
			b.inputIDs[off+j] = t.vocab.padID
		}
		b.pieces[i] = enc.pieces
	}
	return b
}

// wordpiece greedily splits word into the longest vocabulary prefixes,
// marking non-initial pieces with "##". A word that cannot be covered
// becomes a single [UNK].
func (t *tokenizer) wordpiece(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []string{unknownPiece}
	}

	var out []string
	for start := 0; start < len(runes); {
		end := len(runes)
		var piece string
		for ; end > start; end-- {
			cand := string(runes[start:end])
			if start > 0 {
				cand = continuationMark + cand
			}
			if t.vocab.contains(cand) {
				piece = cand
				break
			}
		}
		if piece == "" {
			return []string{unknownPiece}
		}
		out = append(out, piece)
		start = end
	}
	return out
}
