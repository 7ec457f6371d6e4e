package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// storeUnderTest runs the shared contract tests against one backend.
func storeUnderTest(t *testing.T, name string, open func(t *testing.T) Store) {
	t.Run(name+"/put get round trip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		info, err := s.Put(ctx, "data/nagongera.csv", strings.NewReader("a,b\n1,2\n"), PutOptions{
			ContentType: "text/csv",
			Metadata:    map[string]string{"site": "Nagongera"},
		})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if info.Size != 8 || info.ETag == "" {
			t.Fatalf("unexpected info: %+v", info)
		}
		got, rc, err := s.Get(ctx, "data/nagongera.csv")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if string(b) != "a,b\n1,2\n" {
			t.Fatalf("body = %q", b)
		}
		if got.ContentType != "text/csv" || got.Metadata["site"] != "Nagongera" {
			t.Fatalf("metadata lost: %+v", got)
		}
	})

	t.Run(name+"/put replaces", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		if _, err := s.Put(ctx, "index.html", strings.NewReader("old"), PutOptions{}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		info, err := s.Put(ctx, "index.html", strings.NewReader("new"), PutOptions{})
		if err != nil {
			t.Fatalf("Put replace: %v", err)
		}
		_, rc, err := s.Get(ctx, "index.html")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		if string(b) != "new" {
			t.Fatalf("replace did not take: %q", b)
		}
		head, err := s.Head(ctx, "index.html")
		if err != nil {
			t.Fatalf("Head: %v", err)
		}
		if head.ETag != info.ETag {
			t.Fatalf("Head etag %q differs from Put etag %q", head.ETag, info.ETag)
		}
	})

	t.Run(name+"/identical content identical etag", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		a, err := s.Put(ctx, "x", strings.NewReader("same bytes"), PutOptions{})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		b, err := s.Put(ctx, "x", strings.NewReader("same bytes"), PutOptions{})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if a.ETag != b.ETag {
			t.Fatalf("etag must be content-derived: %q vs %q", a.ETag, b.ETag)
		}
	})

	t.Run(name+"/get missing", func(t *testing.T) {
		s := open(t)
		_, _, err := s.Get(context.Background(), "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run(name+"/delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		if _, err := s.Put(ctx, "tmp", strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		ok, err := s.Delete(ctx, "tmp")
		if err != nil || !ok {
			t.Fatalf("Delete = %v, %v", ok, err)
		}
		ok, err = s.Delete(ctx, "tmp")
		if err != nil || ok {
			t.Fatalf("second Delete = %v, %v, want false, nil", ok, err)
		}
	})

	t.Run(name+"/list prefix ordered", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		for _, key := range []string{"viewers/walukuba.html", "data/nagongera.csv", "viewers/nagongera.html"} {
			if _, err := s.Put(ctx, key, strings.NewReader(key), PutOptions{}); err != nil {
				t.Fatalf("Put %s: %v", key, err)
			}
		}
		infos, err := s.List(ctx, "viewers/")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(infos) != 2 || infos[0].Key != "viewers/nagongera.html" || infos[1].Key != "viewers/walukuba.html" {
			t.Fatalf("unexpected listing: %+v", infos)
		}
	})

	t.Run(name+"/rejects traversal keys", func(t *testing.T) {
		s := open(t)
		for _, key := range []string{"", "../escape", "/abs", "a/../../b"} {
			if _, err := s.Put(context.Background(), key, strings.NewReader("x"), PutOptions{}); err == nil {
				t.Fatalf("key %q must be rejected", key)
			}
		}
	})
}

func TestFilesystemStore(t *testing.T) {
	storeUnderTest(t, "fs", func(t *testing.T) Store {
		s, err := NewFilesystem(t.TempDir())
		if err != nil {
			t.Fatalf("NewFilesystem: %v", err)
		}
		return s
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, "memory", func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestFilesystemNoTempLeftovers(t *testing.T) {
	root := t.TempDir()
	s, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	if _, err := s.Put(context.Background(), "data/a.csv", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
}

func TestFilesystemRecoversMissingSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	put, err := s.Put(ctx, "data/a.csv", strings.NewReader("x,y\n1,2\n"), PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Simulate a crash after the data rename but before the sidecar write.
	if err := os.Remove(filepath.Join(root, "data", "a.csv.meta")); err != nil {
		t.Fatalf("remove sidecar: %v", err)
	}

	head, err := s.Head(ctx, "data/a.csv")
	if err != nil {
		t.Fatalf("Head without sidecar: %v", err)
	}
	if head.ETag != put.ETag || head.Size != put.Size {
		t.Fatalf("recovered info %+v differs from written %+v", head, put)
	}
	got, rc, err := s.Get(ctx, "data/a.csv")
	if err != nil {
		t.Fatalf("Get without sidecar: %v", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(b) != "x,y\n1,2\n" || got.ETag != put.ETag {
		t.Fatalf("recovered read wrong: %q, %+v", b, got)
	}
	// Recovery re-persists the sidecar, so listings see the key again.
	infos, err := s.List(ctx, "data/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "data/a.csv" {
		t.Fatalf("recovered artifact missing from listing: %+v", infos)
	}
}

func TestFilesystemPresign(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	url, err := s.PresignURL(context.Background(), "data/a.csv", SignedURLOptions{})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := s.PresignURL(context.Background(), "data/a.csv", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("PUT presign must be unsupported, got %v", err)
	}
}

func TestOpenDefaultsToFilesystem(t *testing.T) {
	s, err := Open(context.Background(), Options{FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Driver() != DriverFilesystem {
		t.Fatalf("default driver = %s, want fs", s.Driver())
	}
	if _, err := Open(context.Background(), Options{Driver: "bogus"}); err == nil {
		t.Fatal("unknown driver must error")
	}
}
