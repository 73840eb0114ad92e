// Package densefeat produces dense features for text: one vector per word
// piece from a BERT-style encoder, followed by a pooled summary row (mean or
// max over the token vectors). Features already attached to an input by
// other featurizers are kept, and the new columns are appended to them.
//
// Quick start:
//
//	f, err := densefeat.New(densefeat.WithModelDir("models/"), densefeat.WithPooling("max"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	res, _ := f.Featurize("book a table for two")
//	fmt.Println(len(res.Text.Tokens), len(res.Text.Dense)) // N, N+1
//
// A Featurizer is safe for concurrent use. Create once, reuse across
// requests. AppendPooled runs the pooling and merge step alone, without a
// model.
package densefeat
