package sqlstore

import (
	"encoding/json"
	"fmt"
)

// dialect holds the SQL that differs between PostgreSQL and SQLite.
type dialect struct {
	name   string
	schema []string

	// field returns the expression extracting a top-level field from the
	// fields column.
	field func(name string) string
	// param is the placeholder a cursor value is compared through.
	param string
	// arg converts a cursor value into its query argument.
	arg func(v any) (any, error)
	// id is the expression ordering by document id bytewise.
	id string
	// lock is appended to the read of a read-modify-write transaction.
	lock string
}

var postgres = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			path        TEXT PRIMARY KEY,
			collection  TEXT NOT NULL,
			id          TEXT NOT NULL,
			fields      JSONB NOT NULL,
			time_fields JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection, id)`,
	},
	field: func(name string) string { return fmt.Sprintf("fields->'%s'", name) },
	param: "?::jsonb",
	arg: func(v any) (any, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	},
	id:   `id COLLATE "C"`,
	lock: " FOR UPDATE",
}

var sqlite = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			path        TEXT PRIMARY KEY,
			collection  TEXT NOT NULL,
			id          TEXT NOT NULL,
			fields      TEXT NOT NULL,
			time_fields TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection, id)`,
	},
	field: func(name string) string { return fmt.Sprintf("json_extract(fields, '$.%s')", name) },
	param: "?",
	arg: func(v any) (any, error) {
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return v, nil
	},
	id: "id",
}

func dialectFor(driverName string) (dialect, error) {
	switch driverName {
	case "postgres", "pgx":
		return postgres, nil
	case "sqlite", "sqlite3":
		return sqlite, nil
	}
	return dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driverName)
}
