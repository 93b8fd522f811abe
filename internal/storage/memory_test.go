package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/templui/vaultgate/internal/config"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.Save(ctx, "a/b", strings.NewReader("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rc, err := s.Open(ctx, "a/b")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "hello" {
		t.Errorf("Open content = %q, want hello", got)
	}

	if err := s.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Open(ctx, "a/b"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Open after delete err = %v, want ErrBlobNotFound", err)
	}
	if err := s.Delete(ctx, "a/b"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("second Delete err = %v, want ErrBlobNotFound", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestNewMemoryBackend(t *testing.T) {
	s, err := New(&config.Config{StorageBackend: "memory"})
	if err != nil {
		t.Fatalf("New(memory): %v", err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("New(memory) = %T, want *MemoryStorage", s)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(&config.Config{StorageBackend: "ftp"})
	if err == nil {
		t.Fatal("New(ftp) succeeded")
	}
}
