package objectstore

import (
	"context"
	"testing"
)

func TestKey_Layout(t *testing.T) {
	got := Key("rakuten", "item", "shop:123", "abcd")
	want := "raw/source=rakuten/entity=item/source_id=shop:123/hash=abcd.json"
	if got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestLocalStore_PutThenGet(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	key := Key("rakuten", "item", "shop:1", "deadbeef")

	res, err := store.PutJSON(ctx, "raw-bucket", key, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	if res.Key != key {
		t.Errorf("result key = %q, want %q", res.Key, key)
	}
	if res.SavedAt.IsZero() {
		t.Errorf("expected non-zero SavedAt")
	}

	body, err := store.GetJSON(ctx, "raw-bucket", key)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if string(body) != `{"a":1}` {
		t.Errorf("body = %s", body)
	}
}

func TestLocalStore_PutIsIdempotentOverwrite(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	key := Key("rakuten", "item", "shop:1", "deadbeef")

	if _, err := store.PutJSON(ctx, "b", key, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.PutJSON(ctx, "b", key, []byte("x")); err != nil {
		t.Fatalf("second put with identical body should be legal: %v", err)
	}
}
