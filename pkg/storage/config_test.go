package storage_test

import (
	"testing"

	"github.com/JaimeStill/creditread/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.ContainerName != "sources" {
		t.Errorf("container_name: got %s, want sources", cfg.ContainerName)
	}
	if cfg.Directory != "data/blobs" {
		t.Errorf("directory: got %s, want data/blobs", cfg.Directory)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("max_retries: got %d, want 3", cfg.MaxRetries)
	}
	if cfg.Backend() != storage.BackendLocal {
		t.Errorf("backend: got %s, want %s", cfg.Backend(), storage.BackendLocal)
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_CONTAINER", "uploads")
	t.Setenv("TEST_CONN", "override-connection")
	t.Setenv("TEST_RETRIES", "7")

	env := &storage.Env{
		ContainerName:    "TEST_CONTAINER",
		ConnectionString: "TEST_CONN",
		MaxRetries:       "TEST_RETRIES",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.ContainerName != "uploads" {
		t.Errorf("container_name: got %s, want uploads", cfg.ContainerName)
	}
	if cfg.ConnectionString != "override-connection" {
		t.Errorf("connection_string: got %s, want override-connection", cfg.ConnectionString)
	}
	if cfg.Directory != "" {
		t.Errorf("directory should stay empty when a connection string is set, got %s", cfg.Directory)
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("max_retries: got %d, want 7", cfg.MaxRetries)
	}
}

func TestBackendPrecedence(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.Config
		want string
	}{
		{"directory wins", storage.Config{Directory: "d", ConnectionString: "c", AccountURL: "u"}, storage.BackendLocal},
		{"connection string", storage.Config{ConnectionString: "c", AccountURL: "u"}, storage.BackendConnection},
		{"account url", storage.Config{AccountURL: "https://acct.blob.core.windows.net"}, storage.BackendIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Backend(); got != tt.want {
				t.Errorf("Backend() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{
		ContainerName:    "sources",
		ConnectionString: "base-conn",
	}

	overlay := storage.Config{ConnectionString: "overlay-conn", MaxRetries: 5}
	base.Merge(&overlay)

	if base.ContainerName != "sources" {
		t.Errorf("container_name should remain sources, got %s", base.ContainerName)
	}
	if base.ConnectionString != "overlay-conn" {
		t.Errorf("connection_string: got %s, want overlay-conn", base.ConnectionString)
	}
	if base.MaxRetries != 5 {
		t.Errorf("max_retries: got %d, want 5", base.MaxRetries)
	}
}
