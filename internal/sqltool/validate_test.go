package sqltool

import (
	"errors"
	"testing"
)

func TestValidateSQL(t *testing.T) {
	tests := []struct {
		name    string
		stmt    string
		wantMsg string // empty means accepted
	}{
		{"simple select", "SELECT COUNT(*) FROM players;", ""},
		{"lower case with spaces", "   select Player from players  ", ""},
		{"join", "SELECT t.TeamName FROM players p JOIN teams t ON p.Team = t.Code", ""},
		{"drop", "DROP TABLE players", msgSelectOnly},
		{"insert", "INSERT INTO teams VALUES ('X', 'Y')", msgSelectOnly},
		{"with clause", "WITH x AS (SELECT 1) SELECT * FROM x", msgSelectOnly},
		{"empty", "", msgSelectOnly},
		{"stacked delete", "SELECT 1; DELETE FROM players", msgDangerous},
		{"update inside", "select * from players; update players set PTS = 0", msgDangerous},
		{"alter", "SELECT 1; ALTER TABLE players ADD x INT", msgDangerous},
		{"keyword in identifier", "SELECT last_update FROM players", msgDangerous},
		{"keyword in literal", "SELECT Player FROM players WHERE Player = 'Dropkick'", msgDangerous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSQL(tt.stmt)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("expected statement to pass, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrSQLSafety) {
				t.Fatalf("expected ErrSQLSafety, got %v", err)
			}
			var se *SafetyError
			if !errors.As(err, &se) || se.Message != tt.wantMsg {
				t.Fatalf("expected message %q, got %v", tt.wantMsg, err)
			}
		})
	}
}
