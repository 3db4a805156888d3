package relay_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hmsnyder/tagfd/internal/relay"
	"github.com/hmsnyder/tagfd/internal/tagclient"
	"github.com/hmsnyder/tagfd/internal/tagtype"
	"github.com/hmsnyder/tagfd/internal/testutil"
)

func startDaemon(t *testing.T) *tagclient.Client {
	client, _ := testutil.StartDaemon(t, 10)
	return client
}

func TestRunOnceEmitsMachineLine(t *testing.T) {
	client := startDaemon(t)
	ctx := context.Background()
	if err := client.Create(ctx, tagtype.Real64, "pressure"); err != nil {
		t.Fatalf("create: %v", err)
	}
	v := tagtype.NewReal64(14.7, uint64(time.Now().UnixMilli())+1000, tagtype.Good)
	if err := client.Write(ctx, "pressure", v); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := relay.Run(runCtx, client, &buf, relay.Options{TagName: "pressure", Format: relay.Machine, Once: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	got, err := relay.ParseMachine(tagtype.Real64, line)
	if err != nil {
		t.Fatalf("parse emitted line %q: %v", line, err)
	}
	if got.Real64() != 14.7 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestRunEmitsHumanFormat(t *testing.T) {
	client := startDaemon(t)
	ctx := context.Background()
	if err := client.Create(ctx, tagtype.Int32, "count"); err != nil {
		t.Fatalf("create: %v", err)
	}
	v := tagtype.NewInt32(7, uint64(time.Now().UnixMilli())+1000, tagtype.Good)
	if err := client.Write(ctx, "count", v); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := relay.Run(runCtx, client, &buf, relay.Options{TagName: "count", Format: relay.Human, Once: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "INT32") {
		t.Fatalf("expected INT32-prefixed human line, got %q", line)
	}
	got, err := relay.ParseHuman(line)
	if err != nil {
		t.Fatalf("parse emitted line %q: %v", line, err)
	}
	if got.Int32() != 7 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	client := startDaemon(t)
	ctx := context.Background()
	if err := client.Create(ctx, tagtype.Int8, "idle"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := client.Read(ctx, "idle", true); err != nil {
		t.Fatalf("drain: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- relay.Run(runCtx, client, &bytes.Buffer{}, relay.Options{TagName: "idle", Format: relay.Machine})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from cancellation")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("relay.Run did not stop after context cancellation")
	}
}
