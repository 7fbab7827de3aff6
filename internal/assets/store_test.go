package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestPutStoresContentAddressed(t *testing.T) {
	store := newTestStore(t)
	data := []byte("hello world")

	name, err := store.Put(data, ".txt")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want := Fingerprint(data) + ".txt"
	if name != want {
		t.Fatalf("stored name = %q, want %q", name, want)
	}

	got, err := os.ReadFile(filepath.Join(store.Root(), name))
	if err != nil {
		t.Fatalf("read stored asset: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("stored bytes = %q, want %q", got, data)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	data := []byte("hello world")

	first, err := store.Put(data, "txt")
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	second, err := store.Put(data, "txt")
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if first != second {
		t.Fatalf("names differ: %q vs %q", first, second)
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read asset root: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("asset root holds %d files, want 1", len(entries))
	}
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Put([]byte("payload"), "glb"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read asset root: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			t.Fatalf("temp file %q left behind", entry.Name())
		}
	}
}

func TestFingerprintsAreDistinct(t *testing.T) {
	corpus := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("b"),
		[]byte("ab"),
		[]byte("hello world"),
		[]byte("hello world "),
		{0x00},
		{0x00, 0x00},
	}
	seen := make(map[string]int)
	for i, data := range corpus {
		fp := Fingerprint(data)
		if len(fp) != 64 {
			t.Fatalf("fingerprint length = %d, want 64", len(fp))
		}
		if prev, dup := seen[fp]; dup {
			t.Fatalf("corpus entries %d and %d collide on %s", prev, i, fp)
		}
		seen[fp] = i
	}
}

func TestExists(t *testing.T) {
	store := newTestStore(t)
	data := []byte("model bytes")
	name := Fingerprint(data) + ".gltf"

	if store.Exists(name) {
		t.Fatal("Exists true before upload")
	}
	if _, err := store.Put(data, "gltf"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !store.Exists(name) {
		t.Fatal("Exists false after upload")
	}
}

func TestExistsRejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"", "../secret", "a/b.txt", "../../etc/passwd"} {
		if store.Exists(name) {
			t.Fatalf("Exists(%q) = true", name)
		}
	}
}

func TestConcurrentIdenticalPuts(t *testing.T) {
	store := newTestStore(t)
	data := []byte("shared world asset payload")

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Put(data, "png"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Put: %v", err)
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read asset root: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("asset root holds %d files, want 1", len(entries))
	}
	info, err := entries[0].Info()
	if err != nil {
		t.Fatalf("stat stored asset: %v", err)
	}
	if info.Size() != int64(len(data)) {
		t.Fatalf("stored size = %d, want %d", info.Size(), len(data))
	}
}

func TestNormalizeExtension(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{".PNG", "png"},
		{"txt", "txt"},
		{".tar.gz", "tar.gz"},
		{"", "bin"},
		{".", "bin"},
		{"  ", "bin"},
	}
	for _, tc := range cases {
		if got := NormalizeExtension(tc.in); got != tc.want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPutDistinctContentDistinctFiles(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 8; i++ {
		if _, err := store.Put([]byte(fmt.Sprintf("asset-%d", i)), "obj"); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read asset root: %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("asset root holds %d files, want 8", len(entries))
	}
}
