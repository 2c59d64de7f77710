// Package ingest turns a directory of source files into documents and
// fixed-window text segments ready for embedding.
package ingest

import "github.com/google/uuid"

// Document is one parsed source file.
type Document struct {
	ID       string
	Source   string
	Text     string
	Metadata map[string]any
}

// NewDocument builds a Document whose ID is derived from its source path,
// so reloading the same corpus yields the same identifiers.
func NewDocument(source, text string) Document {
	return Document{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String(),
		Source:   source,
		Text:     text,
		Metadata: map[string]any{},
	}
}
