package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/MGallo-Code/wabalink/internal/connect"
)

// --- SaveFlow + GetFlow ---

func TestSaveAndGetFlow(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	rs := NewRedisStore(testRDB)

	t.Run("round-trip keeps tree and selection", func(t *testing.T) {
		key := "test_flow_roundtrip"
		t.Cleanup(func() { rs.DeleteFlow(ctx, key) })

		id, _ := uuid.NewV7()
		tree := connect.BuildTree([]connect.BusinessAccount{{
			BusinessAccountID: "ba-1", BusinessName: "Acme", WabaID: "w-1",
			PhoneNumbers: []connect.PhoneNumber{{ID: "p-1", DisplayPhoneNumber: "+1 555"}},
		}}, []connect.Verification{{BusinessAccountID: "ba-1", Result: connect.VerificationResult{Success: true}}})
		f := &connect.Flow{ID: id, ClientID: "c-1", AccessToken: "tok", State: connect.StateSelecting, Tree: tree}
		f.Selection.Toggle("p-1")

		if err := rs.SaveFlow(ctx, key, f, time.Minute); err != nil {
			t.Fatalf("SaveFlow: %v", err)
		}
		got, err := rs.GetFlow(ctx, key)
		if err != nil {
			t.Fatalf("GetFlow: %v", err)
		}
		if got.ID != id || got.ClientID != "c-1" || got.State != connect.StateSelecting {
			t.Errorf("unexpected flow %+v", got)
		}
		if !got.Selection.Has("p-1") {
			t.Error("selection lost in round-trip")
		}
		if _, w, ok := got.Tree.Lookup("p-1"); !ok || !w.Verification.Success {
			t.Error("tree lost in round-trip")
		}
	})

	t.Run("missing key returns ErrCacheMiss", func(t *testing.T) {
		_, err := rs.GetFlow(ctx, "test_flow_nonexistent")
		if !errors.Is(err, ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("ttl is applied", func(t *testing.T) {
		key := "test_flow_ttl"
		t.Cleanup(func() { rs.DeleteFlow(ctx, key) })

		if err := rs.SaveFlow(ctx, key, &connect.Flow{State: connect.StateSelecting}, 30*time.Second); err != nil {
			t.Fatalf("SaveFlow: %v", err)
		}
		ttl, err := testRDB.TTL(ctx, flowKey(key)).Result()
		if err != nil {
			t.Fatalf("TTL: %v", err)
		}
		if ttl <= 0 || ttl > 30*time.Second {
			t.Errorf("expected TTL in (0, 30s], got %v", ttl)
		}
	})
}

// --- DeleteFlow ---

func TestDeleteFlow(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	rs := NewRedisStore(testRDB)

	key := "test_flow_delete"
	if err := rs.SaveFlow(ctx, key, &connect.Flow{}, time.Minute); err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}
	if err := rs.DeleteFlow(ctx, key); err != nil {
		t.Fatalf("DeleteFlow: %v", err)
	}
	if _, err := rs.GetFlow(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after delete, got %v", err)
	}
	if err := rs.DeleteFlow(ctx, key); err != nil {
		t.Errorf("deleting a missing key should not error, got %v", err)
	}
}

// --- RedisLocker ---

func TestRedisLocker(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	lk := NewRedisLocker(testRDB)

	t.Run("second acquire fails until release", func(t *testing.T) {
		key := "test-lock-contention"
		t.Cleanup(func() { testRDB.Del(ctx, lockKeyPrefix+key) })

		release, err := lk.Acquire(ctx, key, 5*time.Second)
		if err != nil {
			t.Fatalf("first Acquire: %v", err)
		}
		if _, err := lk.Acquire(ctx, key, 5*time.Second); !errors.Is(err, ErrLocked) {
			t.Fatalf("expected ErrLocked, got %v", err)
		}

		release()
		release2, err := lk.Acquire(ctx, key, 5*time.Second)
		if err != nil {
			t.Fatalf("Acquire after release: %v", err)
		}
		release2()
	})

	t.Run("stale release does not free a newer holder", func(t *testing.T) {
		key := "test-lock-stale"
		t.Cleanup(func() { testRDB.Del(ctx, lockKeyPrefix+key) })

		staleRelease, err := lk.Acquire(ctx, key, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		time.Sleep(100 * time.Millisecond) // first holder's TTL lapses

		release, err := lk.Acquire(ctx, key, 5*time.Second)
		if err != nil {
			t.Fatalf("second Acquire: %v", err)
		}
		defer release()

		staleRelease()
		if _, err := lk.Acquire(ctx, key, 5*time.Second); !errors.Is(err, ErrLocked) {
			t.Errorf("stale release freed the lock: got %v", err)
		}
	})
}

// --- RedisNotifier ---

func TestRedisNotifier(t *testing.T) {
	requireRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n := NewRedisNotifier(testRDB)

	sub := n.Subscribe(ctx, "flow-notify-test")
	defer sub.Close()
	// Wait for the subscription to be confirmed before publishing
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := connect.OpenerMessage{Type: connect.MessageAuthToken, Token: "tok"}
	if err := n.Notify(ctx, "flow-notify-test", want); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if msg.Channel != OpenerChannel("flow-notify-test") {
		t.Errorf("unexpected channel %q", msg.Channel)
	}
	var got connect.OpenerMessage
	if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}
