package token

import (
	"bytes"
	"os"
	"testing"
	"time"
)

func TestIconStore_PutGet(t *testing.T) {
	s := NewIconStore(t.TempDir())
	ref := testRef(1)

	if err := s.Put(ref, "png", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ref, "png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Get = %x", got)
	}
	if _, err := os.Stat(s.Path(ref, "png") + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestIconStore_SkipsUnchanged(t *testing.T) {
	s := NewIconStore(t.TempDir())
	ref := testRef(2)
	s.Put(ref, "gif", []byte("same"))

	path := s.Path(ref, "gif")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if err := s.Put(ref, "gif", []byte("same")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	info, _ := os.Stat(path)
	if !info.ModTime().Equal(old) {
		t.Error("unchanged icon was rewritten")
	}

	if err := s.Put(ref, "gif", []byte("different")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := s.Get(ref, "gif")
	if string(got) != "different" {
		t.Errorf("icon = %q, want updated content", got)
	}
}
