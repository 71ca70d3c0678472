package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegistryOrderAndIsolation(t *testing.T) {
	var (
		mu       sync.Mutex
		calls    []string
		failures []string
	)
	record := func(name string) Handler {
		return func(context.Context, Event) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
		}
	}

	r := NewRegistry(func(kind string, recovered any) {
		failures = append(failures, PanicError(kind, recovered).Error())
	})
	r.Subscribe("login_success", record("first"))
	r.Subscribe("login_success", func(context.Context, Event) { panic("boom") })
	r.Subscribe("login_success", record("third"))
	r.Subscribe("", record("wildcard"))
	r.Subscribe("logout", record("other"))

	r.Emit(context.Background(), Event{EventType: "login_success"})

	if got := strings.Join(calls, ","); got != "first,third,wildcard" {
		t.Fatalf("unexpected handler order %q", got)
	}
	if len(failures) != 1 || !strings.Contains(failures[0], "boom") {
		t.Fatalf("expected one recovered failure, got %v", failures)
	}
	if r.Handlers("login_success") != 3 {
		t.Fatalf("expected 3 handlers, got %d", r.Handlers("login_success"))
	}
}

func TestDispatcherAsyncDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "session_created", UserID: 5})
	d.Close()

	select {
	case ev := <-sink.Events():
		if ev.EventType != "session_created" || ev.UserID != 5 {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.ID == "" {
			t.Fatal("expected event id to be assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	if d.Emitted() != 1 {
		t.Fatalf("expected 1 emitted, got %d", d.Emitted())
	}

	// Emit after Close is a no-op.
	d.Emit(context.Background(), Event{EventType: "late"})
	d.Close()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherSynchronous(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(Config{Enabled: true, Synchronous: true}, NewJSONWriterSink(&buf))

	d.Emit(context.Background(), Event{EventType: "logout", Success: true, UserID: 3})

	var decoded Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventType != "logout" || decoded.UserID != 3 || !decoded.Success {
		t.Fatalf("unexpected event %+v", decoded)
	}
	d.Close()
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "login_success", Success: true, UserID: 1})
	sink.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid credentials", Username: "mallory"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[0].Message != "login_success" {
		t.Fatalf("unexpected first entry %+v", entries[0].Entry)
	}
	if entries[1].Level != zap.WarnLevel {
		t.Fatalf("expected warn for failed event, got %v", entries[1].Level)
	}
	if entries[1].ContextMap()["username"] != "mallory" {
		t.Fatalf("expected username field, got %v", entries[1].ContextMap())
	}
}
