package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/freekieb7/ember/test"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestLocalFileSystem(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":     "<h1>home</h1>",
		"css/site.css":   "body{}",
		".git/HEAD":      "ref",
		"docs/.keep":     "",
		"docs/guide.txt": "guide",
	})

	fs, err := NewLocalFileSystem(root)
	test.AssertNoError(t, err)

	content, err := fs.ReadFile("/index.html")
	test.AssertNoError(t, err)
	test.AssertEqual(t, "<h1>home</h1>", string(content))

	isDir, err := fs.IsDirectory("/css")
	test.AssertNoError(t, err)
	test.AssertTrue(t, isDir, "/css is a directory")

	isFile, err := fs.IsFile("/css/site.css")
	test.AssertNoError(t, err)
	test.AssertTrue(t, isFile, "/css/site.css is a file")

	exists, err := fs.FileExists("/missing.txt")
	test.AssertNoError(t, err)
	test.AssertTrue(t, !exists, "/missing.txt does not exist")

	_, err = fs.ReadFile("/missing.txt")
	test.AssertErrorIs(t, err, ErrFileNotFound)

	_, err = fs.ListDirectory("/nope")
	test.AssertErrorIs(t, err, ErrDirectoryNotFound)

	infos, err := fs.ListDirectory("/docs")
	test.AssertNoError(t, err)
	test.AssertEqual(t, 2, len(infos))
}

func TestResolveRejectsTraversal(t *testing.T) {
	fs, err := NewLocalFileSystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, rel := range []string{"/../etc/passwd", "/a/../../b", "..", "/a\\b", "/a\x00"} {
		if _, err := fs.Resolve(rel); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Resolve(%q): expected ErrInvalidPath, got %v", rel, err)
		}
	}

	abs, err := fs.Resolve("/a//b/./c")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(fs.Root(), "a", "b", "c"); abs != want {
		t.Errorf("Expected %s, got %s", want, abs)
	}
}

func TestWalkSkipsDotDirectories(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":      "x",
		"js/app.js":       "x",
		".hidden/secret":  "x",
		"js/.cache/a.txt": "x",
	})

	fs, err := NewLocalFileSystem(root)
	if err != nil {
		t.Fatal(err)
	}

	var seen []string
	err = fs.Walk("/", func(rel string, info os.FileInfo) error {
		seen = append(seen, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	slices.Sort(seen)
	want := []string{"/index.html", "/js/app.js"}
	if !slices.Equal(seen, want) {
		t.Errorf("Expected %v, got %v", want, seen)
	}
}

func TestNewLocalFileSystemRequiresDirectory(t *testing.T) {
	root := writeTree(t, map[string]string{"file.txt": "x"})

	if _, err := NewLocalFileSystem(filepath.Join(root, "file.txt")); !errors.Is(err, ErrDirectoryNotFound) {
		t.Errorf("Expected ErrDirectoryNotFound, got %v", err)
	}
	if _, err := NewLocalFileSystem(filepath.Join(root, "nope")); !errors.Is(err, ErrDirectoryNotFound) {
		t.Errorf("Expected ErrDirectoryNotFound, got %v", err)
	}
}
