package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dialect captures the SQL differences between the supported drivers
type dialect struct {
	name          string
	numbered      bool // $1, $2 placeholders instead of ?
	returningID   bool // INSERT ... RETURNING id instead of LastInsertId
	serialPK      string
	timestampType string
	textTime      bool // bind timestamps as UTC text
	insertIgnore  string
}

var dialects = map[string]*dialect{
	"postgres": {
		name:          "postgres",
		numbered:      true,
		returningID:   true,
		serialPK:      "SERIAL PRIMARY KEY",
		timestampType: "TIMESTAMPTZ",
		insertIgnore:  "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
	},
	"mysql": {
		name:          "mysql",
		serialPK:      "BIGINT AUTO_INCREMENT PRIMARY KEY",
		timestampType: "TIMESTAMP",
		insertIgnore:  "INSERT IGNORE INTO %s (%s) VALUES (%s)",
	},
	"sqlite3": {
		name:          "sqlite3",
		returningID:   true,
		serialPK:      "INTEGER PRIMARY KEY AUTOINCREMENT",
		timestampType: "DATETIME",
		textTime:      true,
		insertIgnore:  "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
	},
}

func lookupDialect(driverName string) (*dialect, error) {
	d, ok := dialects[driverName]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}
	return d, nil
}

// rebind rewrites ? placeholders for drivers that number their parameters.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts a timestamp into a bind argument that compares correctly
// against the column's CURRENT_TIMESTAMP default.
func (d *dialect) timeArg(t time.Time) any {
	if d.textTime {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return t.UTC()
}

// expand substitutes dialect-specific column types into migration SQL.
func (d *dialect) expand(sql string) string {
	return strings.NewReplacer(
		"{{serial}}", d.serialPK,
		"{{timestamp}}", d.timestampType,
	).Replace(sql)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
