package storage

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/goliatone/go-formflow/pkg/progress"
)

var (
	_ progress.Storage = (*Memory)(nil)
	_ progress.Storage = (*File)(nil)
	_ progress.Storage = (*Redis)(nil)
)

func exerciseStorage(t *testing.T, s progress.Storage) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "audit:answers"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "audit:answers", `{"name":"Ada"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "audit:answers", `{"name":"Grace"}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := s.Get(ctx, "audit:answers")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != `{"name":"Grace"}` {
		t.Fatalf("expected latest value, got %q", got)
	}
	if err := s.Remove(ctx, "audit:answers"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "audit:answers"); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "audit:answers"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestMemory(t *testing.T) {
	mem := NewMemory()
	exerciseStorage(t, mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mem.Set(ctx, "k", "v"); err == nil {
		t.Fatalf("expected cancelled context to be honoured")
	}
}

func TestFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFile(fs, "/state")
	exerciseStorage(t, store)

	ctx := context.Background()
	for _, key := range []string{"audit:step", "audit:answers", "weird/key"} {
		if err := store.Set(ctx, key, "1"); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"audit:answers", "audit:step", "weird/key"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	entries, err := afero.ReadDir(fs, "/state")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}
}

func TestFile_MissingDirectoryIsEmpty(t *testing.T) {
	store := NewFile(afero.NewMemMapFs(), "/nowhere")
	keys, err := store.Keys()
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected no keys, got %v %v", keys, err)
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("FORMFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FORMFLOW_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	exerciseStorage(t, NewRedis(client, WithKeyPrefix("formflow-test:"), WithTTL(time.Minute)))
}
