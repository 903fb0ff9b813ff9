package database

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"

	"recipeshare/internal/config"
	"recipeshare/internal/docstore"
	"recipeshare/internal/docstore/fsstore"
	"recipeshare/internal/docstore/memstore"
	"recipeshare/internal/docstore/sqlstore"
)

// Connect opens the PostgreSQL database.
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Connected to database successfully")
	return db, nil
}

// ConnectSQLite opens the SQLite file at path. Writes are serialized on a
// single connection.
func ConnectSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	log.Printf("Opened sqlite database %s", path)
	return db, nil
}

// OpenStore opens the document store selected by cfg.Docstore. app is only
// used by the Firestore backend and may be nil otherwise.
func OpenStore(ctx context.Context, cfg *config.Config, app *firebase.App) (docstore.Store, error) {
	switch cfg.Docstore {
	case config.DocstoreFirestore:
		if app == nil {
			return nil, fmt.Errorf("firestore docstore needs a firebase app")
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("get firestore client: %w", err)
		}
		return fsstore.New(client), nil

	case config.DocstorePostgres:
		db, err := Connect(cfg)
		if err != nil {
			return nil, err
		}
		store, err := sqlstore.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil

	case config.DocstoreSQLite:
		db, err := ConnectSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := sqlstore.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil

	case config.DocstoreMemory:
		log.Println("Using in-memory document store, data is lost on exit")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown DOCSTORE %q", cfg.Docstore)
}
