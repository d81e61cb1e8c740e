package rag

import "errors"

// Failure classes of the retrieval core. Every error returned by this
// package, the faiss loader, and the embedder backends wraps exactly one of
// these, so callers can classify failures with errors.Is. None of them are
// retried internally.
var (
	// ErrModelLoad reports that the embedding model could not be reached or
	// initialised.
	ErrModelLoad = errors.New("embedding model unavailable")

	// ErrEncoding reports that a query could not be turned into a vector.
	ErrEncoding = errors.New("query encoding failed")

	// ErrIndexLoad reports a missing, corrupt, or unrecognised index, or an
	// index that does not pair with its document store.
	ErrIndexLoad = errors.New("index load failed")

	// ErrDocumentLoad reports a missing or malformed document file.
	ErrDocumentLoad = errors.New("document load failed")

	// ErrIndexSearch reports an invalid search: dimension mismatch or a
	// negative k.
	ErrIndexSearch = errors.New("index search failed")

	// ErrOutOfRange reports an index hit that has no matching document.
	ErrOutOfRange = errors.New("document id out of range")
)
