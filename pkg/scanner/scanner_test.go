package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestScanner(t *testing.T, root string) *Scanner {
	t.Helper()

	s, err := New(root, Config{})
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}
	return s
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()

	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
}

func sha256hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func collectWalk(t *testing.T, s *Scanner) []*ScannedFile {
	t.Helper()

	var files []*ScannedFile
	err := s.Walk(context.Background(), func(f *ScannedFile) error {
		files = append(files, f)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	return files
}

func walkPaths(files []*ScannedFile) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.RelPath
	}
	return paths
}

func TestNew(t *testing.T) {
	t.Run("rejects missing root", func(t *testing.T) {
		if _, err := New(filepath.Join(t.TempDir(), "absent"), Config{}); err == nil {
			t.Fatal("expected error for missing root")
		}
	})

	t.Run("rejects file root", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "plain.txt", "data")

		if _, err := New(filepath.Join(root, "plain.txt"), Config{}); err == nil {
			t.Fatal("expected error for non-directory root")
		}
	})
}

func TestWalk(t *testing.T) {
	t.Run("emits files in path byte order", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a/z.bin", "zulu")
		writeFile(t, root, "a.txt", "alpha")
		writeFile(t, root, "b/c/d.txt", "delta")
		writeFile(t, root, "b.txt", "bravo")
		if err := os.MkdirAll(filepath.Join(root, "hollow"), 0o755); err != nil {
			t.Fatalf("failed to create empty directory: %v", err)
		}

		// "a.txt" must precede "a/z.bin": '.' sorts before '/'. A
		// name-ordered walk would descend into a/ first.
		want := []string{"a.txt", "a/z.bin", "b.txt", "b/c/d.txt"}
		got := walkPaths(collectWalk(t, newTestScanner(t, root)))
		if len(got) != len(want) {
			t.Fatalf("expected %d files, got %v", len(want), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, got)
			}
		}
	})

	t.Run("hashes content and records size", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")

		files := collectWalk(t, newTestScanner(t, root))
		if len(files) != 1 {
			t.Fatalf("expected 1 file, got %d", len(files))
		}
		f := files[0]
		if f.SHA256 != sha256hex("alpha") {
			t.Fatalf("unexpected digest %s", f.SHA256)
		}
		if f.Size != 5 {
			t.Fatalf("expected size 5, got %d", f.Size)
		}
		if f.ModTime.IsZero() {
			t.Fatal("expected mod time to be recorded")
		}
	})

	t.Run("callback error aborts", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")
		writeFile(t, root, "b.txt", "bravo")

		sentinel := errors.New("stop here")
		visited := 0
		err := newTestScanner(t, root).Walk(context.Background(), func(*ScannedFile) error {
			visited++
			return sentinel
		}, nil)
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", err)
		}
		if visited != 1 {
			t.Fatalf("expected walk to stop after 1 file, visited %d", visited)
		}
	})

	t.Run("canceled context aborts", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := newTestScanner(t, root).Walk(ctx, func(*ScannedFile) error {
			t.Fatal("callback should not run")
			return nil
		}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestWalkSymlinks(t *testing.T) {
	t.Run("follows file links inside the root", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "real.txt", "hello")
		if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias.txt")); err != nil {
			t.Fatalf("failed to create symlink: %v", err)
		}

		files := collectWalk(t, newTestScanner(t, root))
		if len(files) != 2 {
			t.Fatalf("expected 2 files, got %v", walkPaths(files))
		}
		if files[0].RelPath != "alias.txt" || files[0].SHA256 != sha256hex("hello") {
			t.Fatalf("expected alias.txt with target digest, got %+v", files[0])
		}
	})

	t.Run("follows directory links inside the root", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "realdir/f.txt", "content")
		if err := os.Symlink(filepath.Join(root, "realdir"), filepath.Join(root, "linkdir")); err != nil {
			t.Fatalf("failed to create symlink: %v", err)
		}

		got := walkPaths(collectWalk(t, newTestScanner(t, root)))
		want := []string{"linkdir/f.txt", "realdir/f.txt"}
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("skips links outside the root", func(t *testing.T) {
		outside := t.TempDir()
		writeFile(t, outside, "secret.txt", "secret")

		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")
		if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "escape.txt")); err != nil {
			t.Fatalf("failed to create symlink: %v", err)
		}

		got := walkPaths(collectWalk(t, newTestScanner(t, root)))
		if len(got) != 1 || got[0] != "a.txt" {
			t.Fatalf("expected escape.txt to be skipped, got %v", got)
		}
	})

	t.Run("reports dangling links and continues", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")
		writeFile(t, root, "z.txt", "zulu")
		if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "ghost.txt")); err != nil {
			t.Fatalf("failed to create symlink: %v", err)
		}

		var scanErrs []*ScanError
		var paths []string
		err := newTestScanner(t, root).Walk(context.Background(), func(f *ScannedFile) error {
			paths = append(paths, f.RelPath)
			return nil
		}, func(scanErr *ScanError) error {
			scanErrs = append(scanErrs, scanErr)
			return nil
		})
		if err != nil {
			t.Fatalf("walk failed: %v", err)
		}
		if len(scanErrs) != 1 || scanErrs[0].Path != "ghost.txt" {
			t.Fatalf("expected one scan error for ghost.txt, got %v", scanErrs)
		}
		if len(paths) != 2 {
			t.Fatalf("expected walk to continue past the broken link, got %v", paths)
		}
	})

	t.Run("survives link cycles", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")
		if err := os.Symlink(root, filepath.Join(root, "loop")); err != nil {
			t.Fatalf("failed to create symlink: %v", err)
		}

		got := walkPaths(collectWalk(t, newTestScanner(t, root)))
		want := []string{"a.txt", "loop/a.txt"}
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("expected one pass through the cycle, got %v", got)
		}
	})
}

func priorList(files ...PriorFile) PriorSource {
	return func(_ context.Context, fn func(PriorFile) error) error {
		for _, pf := range files {
			if err := fn(pf); err != nil {
				return err
			}
		}
		return nil
	}
}

func collectDiff(t *testing.T, s *Scanner, prior PriorSource) []*Change {
	t.Helper()

	var changes []*Change
	err := s.Diff(context.Background(), prior, func(c *Change) error {
		changes = append(changes, c)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	return changes
}

func TestDiff(t *testing.T) {
	t.Run("classifies every path", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")
		writeFile(t, root, "b.txt", "bravo-new")
		writeFile(t, root, "c.txt", "gamma")

		prior := priorList(
			PriorFile{Path: "0pre.txt", SHA256: sha256hex("gone")},
			PriorFile{Path: "a.txt", SHA256: sha256hex("alpha")},
			PriorFile{Path: "b.txt", SHA256: sha256hex("bravo-old")},
			PriorFile{Path: "zz.txt", SHA256: sha256hex("also gone")},
		)

		changes := collectDiff(t, newTestScanner(t, root), prior)

		want := []struct {
			typ  ChangeType
			path string
		}{
			{ChangeDeleted, "0pre.txt"},
			{ChangeUnchanged, "a.txt"},
			{ChangeModified, "b.txt"},
			{ChangeAdded, "c.txt"},
			{ChangeDeleted, "zz.txt"},
		}
		if len(changes) != len(want) {
			t.Fatalf("expected %d changes, got %d", len(want), len(changes))
		}
		for i, w := range want {
			if changes[i].Type != w.typ || changes[i].Path != w.path {
				t.Fatalf("change %d: expected %s %s, got %s %s",
					i, w.typ, w.path, changes[i].Type, changes[i].Path)
			}
		}

		modified := changes[2]
		if modified.File == nil || modified.File.SHA256 != sha256hex("bravo-new") {
			t.Fatalf("expected modified change to carry the new file, got %+v", modified.File)
		}
		if modified.PriorSHA256 != sha256hex("bravo-old") {
			t.Fatalf("expected modified change to carry the prior digest, got %s", modified.PriorSHA256)
		}
		if changes[0].File != nil {
			t.Fatal("expected deleted change to carry no file")
		}
		if changes[3].PriorSHA256 != "" {
			t.Fatal("expected added change to carry no prior digest")
		}
	})

	t.Run("nil prior reports everything added", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")
		writeFile(t, root, "b.txt", "bravo")

		changes := collectDiff(t, newTestScanner(t, root), nil)
		if len(changes) != 2 {
			t.Fatalf("expected 2 changes, got %d", len(changes))
		}
		for _, c := range changes {
			if c.Type != ChangeAdded {
				t.Fatalf("expected added, got %s for %s", c.Type, c.Path)
			}
		}
	})

	t.Run("empty prior source reports everything added", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")

		changes := collectDiff(t, newTestScanner(t, root), priorList())
		if len(changes) != 1 || changes[0].Type != ChangeAdded {
			t.Fatalf("expected one added change, got %v", changes)
		}
	})

	t.Run("empty tree reports prior as deleted", func(t *testing.T) {
		root := t.TempDir()

		prior := priorList(
			PriorFile{Path: "a.txt", SHA256: sha256hex("alpha")},
			PriorFile{Path: "b.txt", SHA256: sha256hex("bravo")},
		)
		changes := collectDiff(t, newTestScanner(t, root), prior)
		if len(changes) != 2 {
			t.Fatalf("expected 2 changes, got %d", len(changes))
		}
		for _, c := range changes {
			if c.Type != ChangeDeleted {
				t.Fatalf("expected deleted, got %s for %s", c.Type, c.Path)
			}
		}
	})

	t.Run("callback error aborts", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")
		writeFile(t, root, "b.txt", "bravo")

		sentinel := errors.New("stop here")
		seen := 0
		err := newTestScanner(t, root).Diff(context.Background(), priorList(), func(*Change) error {
			seen++
			return sentinel
		}, nil)
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", err)
		}
		if seen != 1 {
			t.Fatalf("expected diff to stop after 1 change, saw %d", seen)
		}
	})

	t.Run("out of order prior fails", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "m.txt", "middle")

		prior := priorList(
			PriorFile{Path: "b.txt", SHA256: sha256hex("bravo")},
			PriorFile{Path: "a.txt", SHA256: sha256hex("alpha")},
		)
		err := newTestScanner(t, root).Diff(context.Background(), prior, func(*Change) error {
			return nil
		}, nil)
		if err == nil || !strings.Contains(err.Error(), "out of order") {
			t.Fatalf("expected out of order error, got %v", err)
		}
	})

	t.Run("prior source failure surfaces", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "alpha")

		sentinel := errors.New("index unavailable")
		prior := PriorSource(func(context.Context, func(PriorFile) error) error {
			return sentinel
		})
		err := newTestScanner(t, root).Diff(context.Background(), prior, func(*Change) error {
			return nil
		}, nil)
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", err)
		}
	})
}
