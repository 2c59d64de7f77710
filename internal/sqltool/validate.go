package sqltool

import (
	"errors"
	"strings"
)

// ErrSQLSafety matches every *SafetyError.
var ErrSQLSafety = errors.New("sql safety violation")

const (
	msgSelectOnly = "Seules les requêtes SELECT sont autorisées."
	msgDangerous  = "Requête SQL potentiellement dangereuse."
)

// forbidden words are matched as plain substrings anywhere in the
// lower-cased statement, identifiers and literals included.
var forbidden = []string{"drop", "delete", "update", "insert", "alter"}

// SafetyError is returned for a statement that must not be executed.
type SafetyError struct {
	Statement string
	Message   string
}

func (e *SafetyError) Error() string { return e.Message }

func (e *SafetyError) Is(target error) bool { return target == ErrSQLSafety }

// ValidateSQL accepts only statements starting with SELECT that contain
// none of the forbidden words.
func ValidateSQL(stmt string) error {
	q := strings.ToLower(strings.TrimSpace(stmt))
	if !strings.HasPrefix(q, "select") {
		return &SafetyError{Statement: stmt, Message: msgSelectOnly}
	}
	for _, w := range forbidden {
		if strings.Contains(q, w) {
			return &SafetyError{Statement: stmt, Message: msgDangerous}
		}
	}
	return nil
}
