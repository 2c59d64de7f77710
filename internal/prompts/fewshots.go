package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fewshots.yaml
var defaultFewShots []byte

// FewShot is one question with its reference SQL.
type FewShot struct {
	Question string `yaml:"question"`
	SQL      string `yaml:"sql"`
}

// DefaultFewShots returns the built-in examples.
func DefaultFewShots() []FewShot {
	shots, err := ParseFewShots(defaultFewShots)
	if err != nil {
		panic(fmt.Sprintf("embedded few-shots: %v", err))
	}
	return shots
}

// LoadFewShots reads examples from a YAML file. An empty path returns the
// built-in set.
func LoadFewShots(path string) ([]FewShot, error) {
	if path == "" {
		return DefaultFewShots(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading few-shots: %w", err)
	}
	return ParseFewShots(data)
}

func ParseFewShots(data []byte) ([]FewShot, error) {
	var shots []FewShot
	if err := yaml.Unmarshal(data, &shots); err != nil {
		return nil, fmt.Errorf("parsing few-shots: %w", err)
	}
	for i, s := range shots {
		if strings.TrimSpace(s.Question) == "" || strings.TrimSpace(s.SQL) == "" {
			return nil, fmt.Errorf("few-shot %d: question and sql are required", i+1)
		}
	}
	return shots, nil
}

// FormatFewShots renders examples the way the SQL template expects them.
func FormatFewShots(shots []FewShot) string {
	var b strings.Builder
	for i, s := range shots {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Question : %s\nSQL : %s\n", s.Question, s.SQL)
	}
	return b.String()
}
