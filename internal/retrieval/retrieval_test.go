package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/efebarandurmaz/courtside/internal/ingest"
	"github.com/efebarandurmaz/courtside/internal/llm"
	"github.com/efebarandurmaz/courtside/internal/vector"
)

type fakeSearcher struct {
	hits  []vector.Hit
	err   error
	gotK  int
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]vector.Hit, error) {
	f.calls++
	f.gotK = k
	return f.hits, f.err
}

type fakeChat struct {
	reply       string
	system      string
	user        string
	temperature float64
	calls       int
}

func (f *fakeChat) Chat(_ context.Context, system, user string, temperature float64) string {
	f.calls++
	f.system, f.user, f.temperature = system, user, temperature
	return f.reply
}

func hits(texts ...string) []vector.Hit {
	out := make([]vector.Hit, len(texts))
	for i, t := range texts {
		out[i] = vector.Hit{Chunk: vector.Chunk{Ordinal: i, Text: t}, Rank: i + 1}
	}
	return out
}

func TestPipeline_NoHits(t *testing.T) {
	chat := &fakeChat{}
	p := New(&fakeSearcher{hits: []vector.Hit{}}, chat)

	resp, err := p.Answer(context.Background(), "Quel est le style de jeu de Denver ?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != NoInformationAnswer || resp.Contexts == nil || len(resp.Contexts) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if chat.calls != 0 {
		t.Fatal("model should not be called without context")
	}
}

func TestPipeline_GroundedAnswer(t *testing.T) {
	search := &fakeSearcher{hits: hits("Denver joue autour de Jokić.", "Le rythme est lent.")}
	chat := &fakeChat{reply: "Denver construit son jeu autour de Jokić, sur un rythme lent."}
	p := New(search, chat)

	resp, _ := p.Answer(context.Background(), "Quel est le style de jeu de Denver ?")
	if resp.Answer != chat.reply {
		t.Fatalf("answer should be used verbatim, got %q", resp.Answer)
	}
	if len(resp.Contexts) != 2 || resp.Contexts[0] != "Denver joue autour de Jokić." {
		t.Fatalf("unexpected contexts %v", resp.Contexts)
	}
	if search.gotK != DefaultK {
		t.Fatalf("expected k=%d, got %d", DefaultK, search.gotK)
	}
	if chat.user != "" || chat.temperature != DefaultTemperature {
		t.Fatalf("unexpected chat call: user=%q temperature=%v", chat.user, chat.temperature)
	}
	wantBlock := "CONTEXTE :\nDenver joue autour de Jokić.\n\n---\n\nLe rythme est lent.\n\nQUESTION :\nQuel est le style de jeu de Denver ?"
	if !strings.Contains(chat.system, wantBlock) {
		t.Fatalf("unexpected prompt:\n%s", chat.system)
	}
}

func TestPipeline_SearchFailure(t *testing.T) {
	chat := &fakeChat{}
	p := New(&fakeSearcher{err: errors.New("embedding query: 401")}, chat)

	resp, err := p.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != llm.ErrorAnswer || len(resp.Contexts) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if chat.calls != 0 {
		t.Fatal("model should not be called after a failed search")
	}
}

func TestPipeline_EmptyIndex(t *testing.T) {
	ix := vector.NewIndex(nil, vector.NewMemoryStore())
	resp, _ := New(ix, &fakeChat{}, WithK(3)).Answer(context.Background(), "q")
	if resp.Answer != NoInformationAnswer {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
}

func TestPipeline_WithIndex(t *testing.T) {
	emb := embedFunc(func(texts []string) [][]float32 {
		out := make([][]float32, len(texts))
		for i, s := range texts {
			out[i] = []float32{float32(strings.Count(s, "Jokić")), float32(strings.Count(s, "Murray"))}
		}
		return out
	})
	ix := vector.NewIndex(emb, vector.NewMemoryStore())
	_, err := ix.Build(context.Background(), []ingest.Document{
		ingest.NewDocument("a.txt", "Murray score en fin de match."),
		ingest.NewDocument("b.txt", "Jokić distribue le jeu."),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	resp, _ := New(ix, &fakeChat{reply: "ok"}, WithK(1)).Answer(context.Background(), "Jokić")
	if len(resp.Contexts) != 1 || resp.Contexts[0] != "Jokić distribue le jeu." {
		t.Fatalf("unexpected contexts %v", resp.Contexts)
	}
}

type embedFunc func([]string) [][]float32

func (f embedFunc) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return f(texts), nil
}
