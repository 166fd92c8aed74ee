package embeddings

import "errors"

// ErrEmbedding indicates a failure computing embeddings.
var ErrEmbedding = errors.New("embedding failed")
