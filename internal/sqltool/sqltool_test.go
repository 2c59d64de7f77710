package sqltool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/efebarandurmaz/courtside/internal/answer"
	"github.com/efebarandurmaz/courtside/internal/sqldb"
)

type call struct {
	system, user string
	temperature  float64
}

// scriptedLLM returns replies in order and records every call.
type scriptedLLM struct {
	replies []string
	errs    []error
	calls   []call
}

func (s *scriptedLLM) Complete(_ context.Context, system, user string, temperature float64) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, call{system, user, temperature})
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

// recordingDB wraps a real database and counts executions.
type recordingDB struct {
	*sqldb.DB
	runs []string
}

func (r *recordingDB) Run(ctx context.Context, stmt string) (*sqldb.Result, error) {
	r.runs = append(r.runs, stmt)
	return r.DB.Run(ctx, stmt)
}

func playersDB(t *testing.T) *recordingDB {
	t.Helper()
	db, err := sqldb.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, s := range []string{
		`CREATE TABLE teams (Code TEXT, TeamName TEXT)`,
		`CREATE TABLE players (id INTEGER PRIMARY KEY, Player TEXT, Team TEXT, Age INTEGER, PTS REAL)`,
		`INSERT INTO teams VALUES ('DEN', 'Denver Nuggets')`,
		`INSERT INTO players (Player, Team, Age, PTS) VALUES
			('Nikola Jokić', 'DEN', 30, 29.6),
			('Jamal Murray', 'DEN', 28, 21.4),
			('Aaron Gordon', 'DEN', 29, 14.7)`,
	} {
		if _, err := db.SQL().Exec(s); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	return &recordingDB{DB: db}
}

func TestPipeline_CountPlayers(t *testing.T) {
	db := playersDB(t)
	llm := &scriptedLLM{replies: []string{
		"```sql\nSELECT COUNT(*) FROM players;\n```",
		"Il y a 3 joueurs dans la base.",
	}}
	p := New(llm, db)

	resp, err := p.Answer(context.Background(), "Combien de joueurs sont présents dans la base ?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "Il y a 3 joueurs dans la base." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if resp.Contexts == nil || len(resp.Contexts) != 0 {
		t.Fatalf("contexts must be empty, got %v", resp.Contexts)
	}

	gen := llm.calls[0]
	for _, want := range []string{"CREATE TABLE players", "Nombre maximum de lignes à renvoyer : 5", "SQL : SELECT COUNT(*) FROM players;", "Combien de joueurs sont présents dans la base ?\n\nSQLQuery:"} {
		if !strings.Contains(gen.user, want) {
			t.Errorf("generation prompt missing %q", want)
		}
	}
	if gen.temperature != DefaultTemperature {
		t.Errorf("expected temperature %v, got %v", DefaultTemperature, gen.temperature)
	}

	rephrase := llm.calls[1].user
	if !strings.Contains(rephrase, "Résultat SQL :\n[(3,)]") || !strings.Contains(rephrase, "Requête SQL générée :\nSELECT COUNT(*) FROM players;") {
		t.Fatalf("unexpected rephrase prompt:\n%s", rephrase)
	}
}

func TestPipeline_TrailingFenceOnly(t *testing.T) {
	db := playersDB(t)
	llm := &scriptedLLM{replies: []string{
		"SELECT COUNT(*) FROM players;\n```",
		"Il y a 3 joueurs dans la base.",
	}}
	p := New(llm, db)

	resp, _ := p.Answer(context.Background(), "Combien de joueurs sont présents dans la base ?")
	if resp.Answer != "Il y a 3 joueurs dans la base." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if len(db.runs) != 1 || db.runs[0] != "SELECT COUNT(*) FROM players;" {
		t.Fatalf("unexpected executions %v", db.runs)
	}
}

func TestPipeline_ExecutionErrorIsFedForward(t *testing.T) {
	db := playersDB(t)
	llm := &scriptedLLM{replies: []string{
		"SQLQuery: SELECT Rebounds FROM players",
		"La colonne demandée n'existe pas.",
	}}
	p := New(llm, db)

	resp, _ := p.Answer(context.Background(), "Qui prend le plus de rebonds ?")
	if resp.Answer != "La colonne demandée n'existe pas." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if len(db.runs) != 1 || db.runs[0] != "SELECT Rebounds FROM players" {
		t.Fatalf("unexpected executions %v", db.runs)
	}
	if !strings.Contains(llm.calls[1].user, "Résultat SQL :\n"+ExecutionErrorPrefix) {
		t.Fatalf("rephrase prompt should carry the execution error:\n%s", llm.calls[1].user)
	}
}

func TestPipeline_UnsafeStatementIsNeverExecuted(t *testing.T) {
	tests := []struct {
		stmt    string
		wantMsg string
	}{
		{"DROP TABLE players", msgSelectOnly},
		{"SELECT 1; DELETE FROM players", msgDangerous},
	}
	for _, tt := range tests {
		db := playersDB(t)
		llm := &scriptedLLM{replies: []string{tt.stmt}}
		resp, err := New(llm, db).Answer(context.Background(), "Vide la table.")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Answer != "Erreur lors du traitement SQL : "+tt.wantMsg {
			t.Fatalf("unexpected answer %q", resp.Answer)
		}
		if len(db.runs) != 0 {
			t.Fatalf("unsafe statement executed: %v", db.runs)
		}
		if len(llm.calls) != 1 {
			t.Fatalf("rephrase should not run, got %d calls", len(llm.calls))
		}
	}
}

func TestPipeline_GenerationAndRephraseErrors(t *testing.T) {
	tests := []struct {
		name string
		llm  *scriptedLLM
	}{
		{"generation fails", &scriptedLLM{errs: []error{errors.New("mistral completion: 503")}}},
		{"rephrase fails", &scriptedLLM{replies: []string{"SELECT 1"}, errs: []error{nil, errors.New("mistral completion: 503")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := New(tt.llm, playersDB(t)).Answer(context.Background(), "Moyenne de points ?")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := answer.Text("Erreur lors du traitement SQL : mistral completion: 503")
			if resp.Answer != want.Answer || len(resp.Contexts) != 0 {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestPipeline_CustomTopKAndFewShots(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"SELECT 1", "ok"}}
	p := New(llm, playersDB(t), WithTopK(10), WithFewShots(nil), WithTemperature(0))
	if _, err := p.Answer(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(llm.calls[0].user, "Nombre maximum de lignes à renvoyer : 10") {
		t.Fatal("top_k not applied")
	}
	if strings.Contains(llm.calls[0].user, "Denver Nuggets ?") {
		t.Fatal("default few-shots should be replaced")
	}
	if llm.calls[0].temperature != 0 {
		t.Fatal("temperature not applied")
	}
}

func TestCleanStatement(t *testing.T) {
	tests := map[string]string{
		"SELECT 1": "SELECT 1",
		"  SQLQuery: SELECT Player FROM players  ":                "SELECT Player FROM players",
		"```sql\nSELECT 1\n```":                                   "SELECT 1",
		"<think>count rows</think>\nSELECT COUNT(*) FROM players": "SELECT COUNT(*) FROM players",
		"SELECT 1\nSQLResult: [(1,)]":                             "SELECT 1",
		"SELECT COUNT(*) FROM players;\n```":                      "SELECT COUNT(*) FROM players;",
	}
	for in, want := range tests {
		if got := CleanStatement(in); got != want {
			t.Errorf("CleanStatement(%q) = %q, want %q", in, got, want)
		}
	}
}
