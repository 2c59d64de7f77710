package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormat_SinglePass(t *testing.T) {
	got := Format(RAG, map[string]string{
		"context":  "Jokić domine au rebond.",
		"question": "Que dit le rapport sur {context} ?",
	})
	if !strings.Contains(got, "CONTEXTE :\nJokić domine au rebond.\n\nQUESTION :\nQue dit le rapport sur {context} ?\n\nRÉPONSE :") {
		t.Fatalf("unexpected prompt:\n%s", got)
	}
}

func TestFormat_LeavesUnknownPlaceholders(t *testing.T) {
	got := Format("{a} {b}", map[string]string{"a": "x"})
	if got != "x {b}" {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultFewShots(t *testing.T) {
	shots := DefaultFewShots()
	if len(shots) != 8 {
		t.Fatalf("expected 8 examples, got %d", len(shots))
	}
	if shots[1].SQL != "SELECT Player FROM players WHERE Team = 'DEN';" {
		t.Fatalf("unexpected example: %+v", shots[1])
	}
	if !strings.Contains(shots[6].SQL, "LIKE '%Williams%'") {
		t.Fatalf("unexpected example: %+v", shots[6])
	}
}

func TestFormatFewShots(t *testing.T) {
	got := FormatFewShots([]FewShot{
		{Question: "Q1 ?", SQL: "SELECT 1;"},
		{Question: "Q2 ?", SQL: "SELECT 2;"},
	})
	want := "Question : Q1 ?\nSQL : SELECT 1;\n\nQuestion : Q2 ?\nSQL : SELECT 2;\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLoadFewShots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shots.yaml")
	os.WriteFile(path, []byte("- question: Combien d'équipes ?\n  sql: SELECT COUNT(*) FROM teams;\n"), 0o644)

	shots, err := LoadFewShots(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shots) != 1 || shots[0].SQL != "SELECT COUNT(*) FROM teams;" {
		t.Fatalf("unexpected shots: %+v", shots)
	}

	os.WriteFile(path, []byte("- question: sans requête\n"), 0o644)
	if _, err := LoadFewShots(path); err == nil {
		t.Fatal("expected error for missing sql")
	}
}

func TestSQLTemplateEndsWithLabel(t *testing.T) {
	got := Format(SQL, map[string]string{
		"table_info": "CREATE TABLE players (...)",
		"top_k":      "5",
		"few_shots":  FormatFewShots(DefaultFewShots()),
		"input":      "Combien de joueurs ?",
	})
	if !strings.HasSuffix(got, "Question :\nCombien de joueurs ?\n\nSQLQuery:\n") {
		t.Fatalf("unexpected tail:\n%s", got[len(got)-80:])
	}
	for _, ph := range []string{"{table_info}", "{top_k}", "{few_shots}", "{input}"} {
		if strings.Contains(got, ph) {
			t.Fatalf("placeholder %s left unfilled", ph)
		}
	}
}
