package sqldb

import (
	"context"
	"fmt"
	"strings"
)

// TableInfo describes every user table: its CREATE statement followed by a
// few sample rows. This text is what the SQL prompt shows the model.
func (d *DB) TableInfo(ctx context.Context) (string, error) {
	tables, err := d.tables(ctx)
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		samples, err := d.samples(ctx, t.name)
		if err != nil {
			return "", fmt.Errorf("sampling %s: %w", t.name, err)
		}
		parts = append(parts, strings.TrimSpace(t.ddl)+"\n\n"+samples)
	}
	return strings.Join(parts, "\n\n"), nil
}

type table struct {
	name string
	ddl  string
}

func (d *DB) tables(ctx context.Context) ([]table, error) {
	if d.dialect == Postgres {
		return d.postgresTables(ctx)
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []table
	for rows.Next() {
		var t table
		if err := rows.Scan(&t.name, &t.ddl); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) postgresTables(ctx context.Context) ([]table, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []table
	cols := map[string][]string{}
	for rows.Next() {
		var name, col, typ string
		if err := rows.Scan(&name, &col, &typ); err != nil {
			return nil, err
		}
		if _, seen := cols[name]; !seen {
			out = append(out, table{name: name})
		}
		cols[name] = append(cols[name], fmt.Sprintf("\t%q %s", col, strings.ToUpper(typ)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ddl = fmt.Sprintf("CREATE TABLE %q (\n%s\n)", out[i].name, strings.Join(cols[out[i].name], ",\n"))
	}
	return out, nil
}

func (d *DB) samples(ctx context.Context, name string) (string, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, quoteIdent(name), sampleRows))
	if err != nil {
		return "", err
	}
	defer rows.Close()
	res, err := scan(rows)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "/*\n%d rows from %s table:\n", sampleRows, name)
	b.WriteString(strings.Join(res.Columns, "\t"))
	b.WriteByte('\n')
	for _, row := range res.Rows {
		vals := make([]string, len(row))
		for i, v := range row {
			vals[i] = truncateWords(strValue(v), 100)
		}
		b.WriteString(strings.Join(vals, "\t"))
		b.WriteByte('\n')
	}
	b.WriteString("*/")
	return b.String(), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
