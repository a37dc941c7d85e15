package ingest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "a")
	writeFile(t, filepath.Join(root, "b.PNG"), "b")
	writeFile(t, filepath.Join(root, "notes.txt"), "n")
	writeFile(t, filepath.Join(root, ".hidden", "c.jpg"), "c")
	writeFile(t, filepath.Join(root, "sub", "d.heic"), "d")

	results, stats, err := ScanDirectory(context.Background(), root, ScanOptions{SkipHidden: true})
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	paths := Paths(results)
	want := []string{
		filepath.Join(root, "a.jpg"),
		filepath.Join(root, "b.PNG"),
		filepath.Join(root, "sub", "d.heic"),
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
	if stats.Matched != 3 || stats.Succeeded != 3 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !bytes.Equal(results[0].Hash, HashBytes([]byte("a"))) || results[0].Size != 1 {
		t.Fatalf("unexpected hash/size for a.jpg: %+v", results[0])
	}

	withHidden, _, err := ScanDirectory(context.Background(), root, ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(withHidden) != 4 {
		t.Fatalf("expected hidden file when not skipping, got %d", len(withHidden))
	}

	onlyJPG, _, err := ScanDirectory(context.Background(), root, ScanOptions{Extensions: []string{".JPG"}, SkipHidden: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyJPG) != 1 {
		t.Fatalf("extension filter: got %d results", len(onlyJPG))
	}
}

func TestScanDirectory_Errors(t *testing.T) {
	if _, _, err := ScanDirectory(context.Background(), " ", ScanOptions{}); err == nil {
		t.Fatal("expected error for empty root")
	}
	if _, _, err := ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), ScanOptions{}); err == nil {
		t.Fatal("expected error for missing root")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := ScanDirectory(ctx, t.TempDir(), ScanOptions{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.png")
	writeFile(t, p, "plate")
	sum, size, err := HashFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if size != 5 || !bytes.Equal(sum, HashBytes([]byte("plate"))) {
		t.Fatalf("HashFile = %x, %d", sum, size)
	}
	if _, _, err := HashFile(p + ".missing"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAllowedExtAndHidden(t *testing.T) {
	for _, ext := range []string{".jpg", "JPEG", "png", ".bmp", "heic"} {
		if !AllowedExt(ext) {
			t.Errorf("AllowedExt(%q) = false", ext)
		}
	}
	for _, ext := range []string{".pdf", "gif", ""} {
		if AllowedExt(ext) {
			t.Errorf("AllowedExt(%q) = true", ext)
		}
	}
	if !IsHidden("/a/.git") || IsHidden("/a/b.jpg") || IsHidden(".") {
		t.Fatal("IsHidden mismatch")
	}
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.jpg"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true})
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	if got := next(); filepath.Base(got) != "existing.jpg" {
		t.Fatalf("initial scan emitted %s", got)
	}

	writeFile(t, filepath.Join(root, "ignored.txt"), "n")
	writeFile(t, filepath.Join(root, "new.png"), "p")
	if got := next(); filepath.Base(got) != "new.png" {
		t.Fatalf("watcher emitted %s, want new.png", got)
	}

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
