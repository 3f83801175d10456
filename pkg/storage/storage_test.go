package storage_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/JaimeStill/creditread/pkg/lifecycle"
	"github.com/JaimeStill/creditread/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocal(t *testing.T) storage.System {
	t.Helper()
	cfg := &storage.Config{Directory: t.TempDir()}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	sys, err := storage.New(cfg, discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.WaitForStartup()
	return sys
}

func TestNewAzureConnectionString(t *testing.T) {
	cfg := &storage.Config{
		ContainerName:    "sources",
		ConnectionString: azuriteConnString,
	}

	sys, err := storage.New(cfg, discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sys == nil {
		t.Fatal("New() returned nil system")
	}
}

func TestNewInvalidConnectionString(t *testing.T) {
	cfg := &storage.Config{
		ContainerName:    "sources",
		ConnectionString: "not-a-connection-string",
	}

	if _, err := storage.New(cfg, discard()); err == nil {
		t.Fatal("expected error for invalid connection string, got nil")
	}
}

func TestLocalRoundTrip(t *testing.T) {
	sys := newLocal(t)
	ctx := context.Background()
	key := "sources/run-1/report.pdf"

	if ok, err := sys.Exists(ctx, key); err != nil || ok {
		t.Fatalf("Exists before upload = %v, %v", ok, err)
	}

	data := []byte("%PDF-1.4 test")
	if err := sys.Upload(ctx, key, bytes.NewReader(data), "application/pdf"); err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	if ok, err := sys.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("Exists after upload = %v, %v", ok, err)
	}

	rc, err := sys.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Errorf("Download = %q, want %q", got, data)
	}

	if err := sys.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := sys.Delete(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	if _, err := sys.Download(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download after delete err = %v, want ErrNotFound", err)
	}
}

func TestKeyValidation(t *testing.T) {
	sys := newLocal(t)
	ctx := context.Background()

	tests := []struct {
		key  string
		want error
	}{
		{"", storage.ErrEmptyKey},
		{"../escape.pdf", storage.ErrInvalidKey},
		{"sources/../../etc/passwd", storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.key), func(t *testing.T) {
			if err := sys.Upload(ctx, tt.key, bytes.NewReader(nil), ""); !errors.Is(err, tt.want) {
				t.Errorf("Upload err = %v, want %v", err, tt.want)
			}
			if _, err := sys.Download(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Download err = %v, want %v", err, tt.want)
			}
			if _, err := sys.Exists(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Exists err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"sources/abc.pdf", nil},
		{"sources/run/report..v2.pdf", nil},
		{"", storage.ErrEmptyKey},
		{"/etc/passwd", storage.ErrInvalidKey},
		{`sources\abc.pdf`, storage.ErrInvalidKey},
		{"sources//abc.pdf", storage.ErrInvalidKey},
		{"sources/./abc.pdf", storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.key), func(t *testing.T) {
			if err := storage.ValidateKey(tt.key); !errors.Is(err, tt.want) {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.want)
			}
		})
	}
}
