package tagclient_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hmsnyder/tagfd/internal/tagclient"
	"github.com/hmsnyder/tagfd/internal/tagcore"
	"github.com/hmsnyder/tagfd/internal/tagtype"
	"github.com/hmsnyder/tagfd/internal/testutil"
)

func startDaemon(t *testing.T, capacity int) (*tagclient.Client, *tagcore.Core) {
	return testutil.StartDaemon(t, capacity)
}

func TestClientCreateWriteRead(t *testing.T) {
	client, _ := startDaemon(t, 10)
	ctx := context.Background()

	if err := client.Create(ctx, tagtype.Real64, "pressure"); err != nil {
		t.Fatalf("create: %v", err)
	}

	ts := uint64(time.Now().UnixMilli()) + 1000
	v := tagtype.NewReal64(101.3, ts, tagtype.Good)
	if err := client.Write(ctx, "pressure", v); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := client.Read(ctx, "pressure", true)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Real64() != 101.3 || got.Timestamp != ts {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestClientReadNonblockingReturnsEAgainWhenUnchanged(t *testing.T) {
	client, _ := startDaemon(t, 10)
	ctx := context.Background()

	if err := client.Create(ctx, tagtype.Int32, "steady"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := client.Read(ctx, "steady", true); err != nil {
		t.Fatalf("first read: %v", err)
	}

	_, err := client.Read(ctx, "steady", true)
	var reqErr *tagclient.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", reqErr.StatusCode)
	}
}

func TestClientBlockingReadWakesOnWrite(t *testing.T) {
	client, _ := startDaemon(t, 10)
	ctx := context.Background()

	if err := client.Create(ctx, tagtype.UInt16, "waking"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := client.Read(ctx, "waking", true); err != nil {
		t.Fatalf("drain: %v", err)
	}

	type result struct {
		v   tagtype.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := client.Read(context.Background(), "waking", false)
		done <- result{v: v, err: err}
	}()

	time.Sleep(50 * time.Millisecond)
	v := tagtype.NewUInt16(42, uint64(time.Now().UnixMilli()), tagtype.Good)
	if err := client.Write(ctx, "waking", v); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("blocking read error: %v", r.err)
		}
		if r.v.UInt16() != 42 {
			t.Fatalf("unexpected value: %+v", r.v)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("blocking read did not wake within 3s")
	}
}

func TestClientCreateDuplicateFails(t *testing.T) {
	client, _ := startDaemon(t, 10)
	ctx := context.Background()

	if err := client.Create(ctx, tagtype.Int8, "dup"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := client.Create(ctx, tagtype.Int8, "dup")
	var reqErr *tagclient.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Code != "name_taken" {
		t.Fatalf("want name_taken, got %q", reqErr.Code)
	}
}

func TestClientList(t *testing.T) {
	client, _ := startDaemon(t, 10)
	ctx := context.Background()

	if err := client.Create(ctx, tagtype.Int8, "one"); err != nil {
		t.Fatalf("create one: %v", err)
	}
	if err := client.Create(ctx, tagtype.Int8, "two"); err != nil {
		t.Fatalf("create two: %v", err)
	}

	tags, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "one" || tags[1].Name != "two" {
		t.Fatalf("unexpected tags: %+v", tags)
	}
}

func TestClientHealth(t *testing.T) {
	client, _ := startDaemon(t, 10)
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Status != "ok" {
		t.Fatalf("unexpected status: %q", health.Status)
	}
}

func TestClientReadUnknownTagFails(t *testing.T) {
	client, _ := startDaemon(t, 10)
	_, err := client.Read(context.Background(), "nonexistent", true)
	var reqErr *tagclient.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", reqErr.StatusCode)
	}
}
