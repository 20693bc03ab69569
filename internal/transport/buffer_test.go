package transport

import (
	"fmt"
	"testing"
)

func TestPublishBufferDisabledByDefault(t *testing.T) {
	b := NewPublishBuffer()

	if queued, _ := b.Add("a/b", []byte("x")); queued {
		t.Error("Expected Add to fail before Configure")
	}
	if b.Len() != 0 {
		t.Errorf("Expected empty buffer, got %d entries", b.Len())
	}
}

func TestPublishBufferDropNewest(t *testing.T) {
	b := NewPublishBuffer()
	b.Configure(BufferOptions{Enabled: true, Size: 3})

	for i := 0; i < 3; i++ {
		if queued, _ := b.Add(fmt.Sprintf("t/%d", i), []byte("x")); !queued {
			t.Fatalf("Expected Add %d to succeed", i)
		}
	}

	// Buffer full: default policy keeps the oldest, drops the incoming
	queued, dropped := b.Add("t/overflow", []byte("x"))
	if queued {
		t.Error("Expected overflow Add to be rejected")
	}
	if !dropped {
		t.Error("Expected overflow Add to report a drop")
	}

	entries := b.Drain()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Topic != "t/0" {
		t.Errorf("Expected oldest entry t/0 first, got %s", entries[0].Topic)
	}
	if b.Dropped() != 1 {
		t.Errorf("Expected 1 dropped, got %d", b.Dropped())
	}
}

func TestPublishBufferDropOldest(t *testing.T) {
	b := NewPublishBuffer()
	b.Configure(BufferOptions{Enabled: true, Size: 2, DropOldest: true})

	b.Add("t/0", []byte("x"))
	b.Add("t/1", []byte("x"))
	queued, dropped := b.Add("t/2", []byte("x"))
	if !queued {
		t.Error("Expected Add to succeed under drop-oldest policy")
	}
	if !dropped {
		t.Error("Expected eviction of the oldest entry to be reported")
	}

	entries := b.Drain()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Topic != "t/1" || entries[1].Topic != "t/2" {
		t.Errorf("Expected entries t/1, t/2; got %s, %s", entries[0].Topic, entries[1].Topic)
	}
}

func TestPublishBufferDrainEmpties(t *testing.T) {
	b := NewPublishBuffer()
	b.Configure(BufferOptions{Enabled: true, Size: 10})

	b.Add("a", []byte("1"))
	b.Add("b", []byte("2"))

	entries := b.Drain()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if b.Len() != 0 {
		t.Errorf("Expected empty buffer after drain, got %d", b.Len())
	}
	if len(b.Drain()) != 0 {
		t.Error("Expected second drain to return nothing")
	}
}

func TestPublishBufferReconfigureShrinks(t *testing.T) {
	b := NewPublishBuffer()
	b.Configure(BufferOptions{Enabled: true, Size: 4})

	for i := 0; i < 4; i++ {
		b.Add(fmt.Sprintf("t/%d", i), []byte("x"))
	}

	b.Configure(BufferOptions{Enabled: true, Size: 2})
	if b.Len() != 2 {
		t.Errorf("Expected buffer shrunk to 2, got %d", b.Len())
	}

	b.Configure(BufferOptions{Enabled: false})
	if b.Len() != 0 {
		t.Errorf("Expected disabled buffer to be empty, got %d", b.Len())
	}
}
