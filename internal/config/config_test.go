package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "DOCSTORE", "COMMENT_PAGE_SIZE", "ANONYMOUS_NAME", "PANEL_IDLE_TTL", "WORKER_ENABLED"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ServerPort != "8080" || cfg.Docstore != DocstoreFirestore {
		t.Errorf("unexpected defaults: port=%s docstore=%s", cfg.ServerPort, cfg.Docstore)
	}
	if cfg.CommentPageSize != 10 || cfg.AnonymousName != "Anonymous" {
		t.Errorf("unexpected panel defaults: size=%d name=%q", cfg.CommentPageSize, cfg.AnonymousName)
	}
	if cfg.PanelIdleTTL != 30*time.Minute || !cfg.WorkerEnabled {
		t.Errorf("unexpected defaults: ttl=%v worker=%v", cfg.PanelIdleTTL, cfg.WorkerEnabled)
	}
}

func TestLoadConfig_ReadsEnvFile(t *testing.T) {
	// ARRANGE
	t.Setenv("DOCSTORE", "")
	t.Setenv("COMMENT_PAGE_SIZE", "")
	os.Unsetenv("DOCSTORE")
	os.Unsetenv("COMMENT_PAGE_SIZE")
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("DOCSTORE=sqlite\nCOMMENT_PAGE_SIZE=25\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("DOCSTORE")
		os.Unsetenv("COMMENT_PAGE_SIZE")
	})

	// ACT
	cfg, err := LoadConfig(path)

	// ASSERT
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Docstore != DocstoreSQLite {
		t.Errorf("expected sqlite, got %s", cfg.Docstore)
	}
	if cfg.CommentPageSize != 25 {
		t.Errorf("expected page size 25, got %d", cfg.CommentPageSize)
	}
}
