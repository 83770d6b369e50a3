package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func testStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "reports/2024/usage.json", strings.NewReader(`{"ok":true}`), PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"kind": "usage"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(`{"ok":true}`)) {
		t.Fatalf("unexpected size %d", info.Size)
	}

	if _, err := store.Put(ctx, "reports/2024/usage.json", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("second put on the same key must fail")
	}

	got, rc, err := store.Get(ctx, "reports/2024/usage.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", body)
	}
	if got.ContentType != "application/json" || got.Metadata["kind"] != "usage" {
		t.Fatalf("unexpected info %+v", got)
	}

	head, err := store.Head(ctx, "reports/2024/usage.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != info.Size {
		t.Fatalf("head size mismatch: %d vs %d", head.Size, info.Size)
	}

	if _, err := store.Put(ctx, "reports/2024/stats.json", strings.NewReader("{}"), PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if _, err := store.Put(ctx, "other/readme.txt", strings.NewReader("hi"), PutOptions{}); err != nil {
		t.Fatalf("put third: %v", err)
	}

	listed, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 prefixed blobs, got %d", len(listed))
	}
	if listed[0].Key != "reports/2024/stats.json" || listed[1].Key != "reports/2024/usage.json" {
		t.Fatalf("expected sorted keys, got %+v", listed)
	}

	ok, err := store.Delete(ctx, "other/readme.txt")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, "other/readme.txt")
	if err != nil || ok {
		t.Fatalf("second delete should be (false, nil), got (%v, %v)", ok, err)
	}
	if _, err := store.Head(ctx, "other/readme.txt"); err == nil {
		t.Fatal("head of deleted blob must fail")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %q", store.Driver())
	}
	testStoreContract(t, store)

	if _, err := store.PresignURL(context.Background(), "x", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestFilesystemStore(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("unexpected driver %q", store.Driver())
	}
	testStoreContract(t, store)

	t.Run("presign", func(t *testing.T) {
		url, err := store.PresignURL(context.Background(), "reports/2024/usage.json", SignedURLOptions{})
		if err != nil {
			t.Fatalf("presign: %v", err)
		}
		if !strings.Contains(url, "reports/2024/usage.json") {
			t.Fatalf("unexpected url %q", url)
		}
		if _, err := store.PresignURL(context.Background(), "x", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
		}
	})

	t.Run("key sanitization", func(t *testing.T) {
		for _, key := range []string{"", "  ", "/abs", "../escape", "a/../../b"} {
			if _, err := store.Put(context.Background(), key, strings.NewReader("x"), PutOptions{}); err == nil {
				t.Fatalf("expected rejection for key %q", key)
			}
		}
	})
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Run("default fs", func(t *testing.T) {
		t.Setenv("CHEMLAB_BLOB_DRIVER", "")
		t.Setenv("CHEMLAB_BLOB_FS_ROOT", t.TempDir())
		store, err := Open(context.Background())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if store.Driver() != DriverFilesystem {
			t.Fatalf("expected fs driver, got %q", store.Driver())
		}
	})

	t.Run("memory", func(t *testing.T) {
		t.Setenv("CHEMLAB_BLOB_DRIVER", string(DriverMemory))
		store, err := Open(context.Background())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if store.Driver() != DriverMemory {
			t.Fatalf("expected memory driver, got %q", store.Driver())
		}
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		t.Setenv("CHEMLAB_BLOB_DRIVER", string(DriverS3))
		t.Setenv("CHEMLAB_BLOB_S3_BUCKET", "")
		if _, err := Open(context.Background()); err == nil {
			t.Fatal("expected error without bucket")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		t.Setenv("CHEMLAB_BLOB_DRIVER", "carrier-pigeon")
		if _, err := Open(context.Background()); err == nil {
			t.Fatal("expected error for unknown driver")
		}
	})
}
