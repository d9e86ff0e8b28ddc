package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "http://localhost:2000/uploads")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	body := "cover bytes"
	if err := fs.Put(ctx, "covers/b1.jpg", strings.NewReader(body), int64(len(body)), "image/jpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := fs.Open(ctx, "covers/b1.jpg")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil || string(got) != body {
		t.Fatalf("read = %q, %v; want %q", got, err, body)
	}
	url, err := fs.URL(ctx, "covers/b1.jpg")
	if err != nil || url != "http://localhost:2000/uploads/covers/b1.jpg" {
		t.Fatalf("url = %q, %v", url, err)
	}
}

func TestFileStoreDeleteIsIdempotent(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "http://localhost:2000/uploads")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	if err := fs.Put(ctx, "pdfs/b1.pdf", strings.NewReader("pdf"), 3, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := fs.Delete(ctx, "pdfs/b1.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := fs.Delete(ctx, "pdfs/b1.pdf"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := fs.Open(ctx, "pdfs/b1.pdf"); err == nil {
		t.Fatal("open after delete should fail")
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "http://localhost:2000/uploads")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := fs.Put(context.Background(), "../outside.txt", strings.NewReader("x"), 1, ""); err == nil {
		t.Fatal("traversal key should be rejected")
	}
}
