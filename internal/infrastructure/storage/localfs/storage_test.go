package localfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveOpenDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "uploads/abc-shot.jpg", strings.NewReader("jpeg")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := s.Open(ctx, "uploads/abc-shot.jpg")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "jpeg" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := s.Delete(ctx, "uploads/abc-shot.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "uploads/abc-shot.jpg"); err != nil {
		t.Fatalf("second Delete() must be idempotent, got %v", err)
	}
	if _, err := s.Open(ctx, "uploads/abc-shot.jpg"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestKeysCannotEscapeBasePath(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Save(context.Background(), "../../outside.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "outside.txt")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("object escaped base path")
	}
	if _, err := os.Stat(filepath.Join(dir, "store", "outside.txt")); err != nil {
		t.Fatalf("expected object inside base path: %v", err)
	}
	if err := s.Save(context.Background(), "", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
