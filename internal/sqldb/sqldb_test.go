package sqldb

import (
	"context"
	"strings"
	"testing"
)

// openFixture creates an in-memory NBA dataset.
func openFixture(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE teams (Code TEXT PRIMARY KEY, TeamName TEXT)`,
		`CREATE TABLE players (id INTEGER PRIMARY KEY, Player TEXT, Team TEXT, Age INTEGER, PTS REAL, TSpct REAL)`,
		`INSERT INTO teams VALUES ('DEN', 'Denver Nuggets'), ('OKC', 'Oklahoma City Thunder')`,
		`INSERT INTO players (Player, Team, Age, PTS, TSpct) VALUES
			('Nikola Jokić', 'DEN', 30, 29.6, 66.3),
			('Shai Gilgeous-Alexander', 'OKC', 26, 32.7, 63.7),
			('Jamal Murray', 'DEN', 28, 21.4, NULL),
			('Aaron Gordon', 'DEN', 29, 14.7, 60.1)`,
	}
	for _, s := range stmts {
		if _, err := db.SQL().Exec(s); err != nil {
			t.Fatalf("fixture %q: %v", s, err)
		}
	}
	return db
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect Dialect
		source  string
	}{
		{"sqlite:///data/nba.db", SQLite, "data/nba.db"},
		{"sqlite:////var/lib/nba.db", SQLite, "/var/lib/nba.db"},
		{"data/nba.db", SQLite, "data/nba.db"},
		{":memory:", SQLite, ":memory:"},
		{"postgres://u:p@localhost/nba", Postgres, "postgres://u:p@localhost/nba"},
		{"postgresql://localhost/nba", Postgres, "postgresql://localhost/nba"},
	}
	for _, tt := range tests {
		d, src, err := ParseDSN(tt.dsn)
		if err != nil {
			t.Fatalf("ParseDSN(%q): %v", tt.dsn, err)
		}
		if d != tt.dialect || src != tt.source {
			t.Errorf("ParseDSN(%q) = %s %q, want %s %q", tt.dsn, d, src, tt.dialect, tt.source)
		}
	}
	if _, _, err := ParseDSN("  "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestRun_CountPlayers(t *testing.T) {
	db := openFixture(t)
	res, err := db.Run(context.Background(), "SELECT COUNT(*) FROM players;")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.String(); got != "[(4,)]" {
		t.Fatalf("got %q", got)
	}
}

func TestRun_RendersTuples(t *testing.T) {
	db := openFixture(t)
	res, err := db.Run(context.Background(),
		"SELECT Player, PTS, TSpct FROM players WHERE Team = 'DEN' ORDER BY PTS DESC LIMIT 2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "[('Nikola Jokić', 29.6, 66.3), ('Jamal Murray', 21.4, None)]"
	if got := res.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if len(res.Columns) != 3 || res.Columns[0] != "Player" {
		t.Fatalf("unexpected columns %v", res.Columns)
	}
}

func TestRun_EmptyResult(t *testing.T) {
	db := openFixture(t)
	res, err := db.Run(context.Background(), "SELECT Player FROM players WHERE Age > 40")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.String() != "" {
		t.Fatalf("expected empty rendering, got %q", res.String())
	}
}

func TestRun_ReadOnly(t *testing.T) {
	db := openFixture(t)
	if _, err := db.Run(context.Background(), "DELETE FROM players"); err == nil {
		t.Fatal("expected write to be refused")
	}
	res, err := db.Run(context.Background(), "SELECT COUNT(*) FROM players")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.String() != "[(4,)]" {
		t.Fatalf("rows changed: %s", res)
	}
	// the pragma is released after the call
	if _, err := db.SQL().Exec(`INSERT INTO teams VALUES ('LAL', 'Los Angeles Lakers')`); err != nil {
		t.Fatalf("connection left read-only: %v", err)
	}
}

func TestRun_ErrorOnUnknownColumn(t *testing.T) {
	db := openFixture(t)
	if _, err := db.Run(context.Background(), "SELECT Rebounds FROM players"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTableInfo(t *testing.T) {
	db := openFixture(t)
	info, err := db.TableInfo(context.Background())
	if err != nil {
		t.Fatalf("TableInfo: %v", err)
	}
	for _, want := range []string{
		"CREATE TABLE players (id INTEGER PRIMARY KEY, Player TEXT",
		"/*\n3 rows from players table:\nid\tPlayer\tTeam\tAge\tPTS\tTSpct\n1\tNikola Jokić\tDEN\t30\t29.6\t66.3\n",
		"CREATE TABLE teams",
		"3 rows from teams table:\nCode\tTeamName\nDEN\tDenver Nuggets\nOKC\tOklahoma City Thunder\n*/",
	} {
		if !strings.Contains(info, want) {
			t.Errorf("table info missing %q:\n%s", want, info)
		}
	}
	if strings.Index(info, "CREATE TABLE players") > strings.Index(info, "CREATE TABLE teams") {
		t.Error("tables should be listed by name")
	}
}

func TestReprValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "None"},
		{int64(42), "42"},
		{12.0, "12.0"},
		{0.5, "0.5"},
		{true, "True"},
		{"D'Angelo Russell", `"D'Angelo Russell"`},
		{`a'b"c`, `'a\'b"c'`},
		{[]byte("DEN"), "'DEN'"},
	}
	for _, tt := range tests {
		if got := reprValue(tt.in); got != tt.want {
			t.Errorf("reprValue(%#v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	if got := truncateWords("un deux trois", 8); got != "un deux..." {
		t.Fatalf("got %q", got)
	}
	if got := truncateWords("court", 8); got != "court" {
		t.Fatalf("got %q", got)
	}
}
