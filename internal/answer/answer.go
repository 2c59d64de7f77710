// Package answer defines the single response shape every question path
// returns.
package answer

// Response is what a caller gets back for a question. Contexts is never nil:
// it is empty for structured answers and failures, and holds the retrieved
// chunk texts (in relevance order) for retrieval answers.
type Response struct {
	Answer   string   `json:"answer"`
	Contexts []string `json:"contexts"`
}

// Text builds a response with no supporting contexts.
func Text(s string) Response {
	return Response{Answer: s, Contexts: []string{}}
}

// WithContexts builds a response carrying the given contexts. A nil slice is
// normalized to an empty one.
func WithContexts(s string, contexts []string) Response {
	if contexts == nil {
		contexts = []string{}
	}
	return Response{Answer: s, Contexts: contexts}
}

// Normalize fixes a nil Contexts slice in place and returns r.
func (r Response) Normalize() Response {
	if r.Contexts == nil {
		r.Contexts = []string{}
	}
	return r
}
