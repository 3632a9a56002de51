package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("APIPort = %q", cfg.APIPort)
	}
	if cfg.RAGTopK != 10 || cfg.RAGTopKExpanded != 5 || cfg.RAGNumVariations != 3 {
		t.Fatalf("retrieval defaults = %+v", cfg)
	}
	if cfg.RAGDefaultAlpha != 0.5 || cfg.GroundingThreshold != 0.5 {
		t.Fatalf("score defaults = %+v", cfg)
	}
	if cfg.ExpansionFailMode != "open" || cfg.RerankFailMode != "closed" || cfg.GroundingFailMode != "open" {
		t.Fatalf("fail mode defaults = %+v", cfg)
	}
	if cfg.AuthTokenTTL != 30*time.Minute {
		t.Fatalf("AuthTokenTTL = %v", cfg.AuthTokenTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RAG_TOP_K", "7")
	t.Setenv("RAG_DEFAULT_ALPHA", "0.8")
	t.Setenv("GENERATE_TIMEOUT", "45s")
	t.Setenv("RAG_RRF_CONSTANT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RAGTopK != 7 {
		t.Fatalf("RAGTopK = %d", cfg.RAGTopK)
	}
	if cfg.RAGDefaultAlpha != 0.8 {
		t.Fatalf("RAGDefaultAlpha = %v", cfg.RAGDefaultAlpha)
	}
	if cfg.GenerateTimeout != 45*time.Second {
		t.Fatalf("GenerateTimeout = %v", cfg.GenerateTimeout)
	}
	// Unparseable values fall back rather than failing startup.
	if cfg.RAGRRFConstant != 60 {
		t.Fatalf("RAGRRFConstant = %d", cfg.RAGRRFConstant)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "QDRANT_COLLECTION: contracts\nRAG_RERANK_TOP_N: \"5\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QDRANT_COLLECTION", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.QdrantCollection != "contracts" {
		t.Fatalf("QdrantCollection = %q", cfg.QdrantCollection)
	}
	if cfg.RAGRerankTopN != 5 {
		t.Fatalf("RAGRerankTopN = %d", cfg.RAGRerankTopN)
	}
}

func TestLoadYAMLOverlayEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("API_PORT: \"9000\"\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIPort != "7070" {
		t.Fatalf("APIPort = %q", cfg.APIPort)
	}
}

func TestLoadMissingConfigFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
