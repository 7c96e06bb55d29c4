package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestStoreRoundTripWithPrefix(t *testing.T) {
	server := miniredis.RunT(t)
	store, err := Open(Options{Addr: server.Addr(), Prefix: "sv:"})
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Set(ctx, "startup_vision_current_session_S1", "abc"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	raw, err := server.Get("sv:startup_vision_current_session_S1")
	if err != nil || raw != "abc" {
		t.Fatalf("expected prefixed key in redis, got %q err=%v", raw, err)
	}

	value, ok, err := store.Get(ctx, "startup_vision_current_session_S1")
	if err != nil || !ok || value != "abc" {
		t.Fatalf("unexpected Get result: %q %v %v", value, ok, err)
	}

	if err := store.Remove(ctx, "startup_vision_current_session_S1"); err != nil {
		t.Fatalf("Remove err: %v", err)
	}
	if _, ok, err := store.Get(ctx, "startup_vision_current_session_S1"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
}

func TestOpenFailsWithoutServer(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	if _, err := Open(Options{Addr: addr}); err == nil {
		t.Fatal("expected connection error")
	}
}
