package database

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect hides the differences between the supported SQL engines.
// Queries are written with '?' placeholders and rebound per engine.
type dialect struct {
	name      string // goose dialect and migrations directory
	driver    string // database/sql driver name
	numbered  bool   // $1, $2... placeholders
	forUpdate string
	onUpdate  func(conflict string, update []string) string
}

var dialects = map[string]dialect{
	"sqlite3": {
		name:   "sqlite3",
		driver: "sqlite3",
		// sqlite locks the whole database for a write transaction, see _txlock
		forUpdate: "",
		onUpdate:  onConflict,
	},
	"postgres": {
		name:      "postgres",
		driver:    "pgx",
		numbered:  true,
		forUpdate: " FOR UPDATE",
		onUpdate:  onConflict,
	},
	"mysql": {
		name:      "mysql",
		driver:    "mysql",
		forUpdate: " FOR UPDATE",
		onUpdate: func(_ string, update []string) string {
			sets := make([]string, len(update))
			for i, col := range update {
				sets[i] = fmt.Sprintf("%s=VALUES(%s)", col, col)
			}
			return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
		},
	},
}

func onConflict(conflict string, update []string) string {
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = fmt.Sprintf("%s=excluded.%s", col, col)
	}
	return fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", conflict, strings.Join(sets, ", "))
}

func dialectFor(name string) (dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
	}
	return d, nil
}

// rebind converts '?' placeholders to the engine's style.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// upsert builds a single atomic insert-or-update statement.
func (d dialect) upsert(table, conflict string, cols, update []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	query := fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s)", table, strings.Join(cols, ", "), marks)
	return d.rebind(query + d.onUpdate(conflict, update))
}
