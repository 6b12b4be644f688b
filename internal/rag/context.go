// Package rag holds the pure retrieval-augmentation steps: turning
// ranked search hits into a context blob and building the system
// prompt around it. Nothing in this package performs I/O.
package rag

import (
	"encoding/json"

	"github.com/pitlane/f1gpt/internal/vectorstore"
)

// EmptyContext is the serialization of "no context available".
const EmptyContext = "[]"

// AssembleContext serializes the texts of ranked search hits into a context
// blob: a JSON array of strings preserving input order. An empty input
// yields EmptyContext, never an error.
func AssembleContext(docs []vectorstore.Document) string {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	// Marshaling a []string cannot fail.
	blob, _ := json.Marshal(texts)
	return string(blob)
}
