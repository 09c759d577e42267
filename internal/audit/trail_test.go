package audit_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultCore/internal/audit"
	"VaultCore/internal/event"
	"VaultCore/internal/testutil"
)

// ============================================================================
// Test: sequencing and envelopes
// ============================================================================

func TestTrail_MonotonicSequence(t *testing.T) {
	trail := audit.NewTrail(zerolog.Nop(), nil)
	ch := trail.Subscribe("test", 16)

	trail.Record(event.FuseAdded{Fuse: testutil.Addr(1)})
	trail.Record(event.FuseRemoved{Fuse: testutil.Addr(1)})
	trail.Record(event.MarketLimitsActivated{})
	trail.Close()

	var seqs []int64
	for env := range ch {
		seqs = append(seqs, env.Sequence)
	}
	if len(seqs) != 3 {
		t.Fatalf("received %d envelopes, want 3", len(seqs))
	}
	for i, s := range seqs {
		if s != int64(i+1) {
			t.Errorf("envelope %d has sequence %d, want %d", i, s, i+1)
		}
	}
	if trail.Sequence() != 3 {
		t.Errorf("trail sequence %d, want 3", trail.Sequence())
	}
}

func TestTrail_ResumeFrom(t *testing.T) {
	trail := audit.NewTrail(zerolog.Nop(), nil)
	ch := trail.Subscribe("test", 1)
	trail.ResumeFrom(41)

	trail.Record(event.FuseAdded{Fuse: testutil.Addr(1)})
	trail.Close()

	env := <-ch
	if env.Sequence != 42 {
		t.Errorf("sequence %d, want 42 (resumed after 41)", env.Sequence)
	}
}

func TestTrail_EnvelopeFields(t *testing.T) {
	trail := audit.NewTrail(zerolog.Nop(), nil)
	ch := trail.Subscribe("test", 1)

	trail.Record(event.BalanceFuseAdded{Market: 7, Fuse: testutil.Addr(2)})
	trail.Close()

	env := <-ch
	if env.Type != event.RecordTypeBalanceFuseAdded {
		t.Errorf("type %s, want %s", env.Type, event.RecordTypeBalanceFuseAdded)
	}
	if env.RecordID == uuid.Nil {
		t.Error("record id should be assigned")
	}
	if env.MarketID == nil || *env.MarketID != 7 {
		t.Errorf("market id %v, want 7", env.MarketID)
	}
	if env.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}

	var payload struct {
		Market uint64 `json:"market"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Market != 7 {
		t.Errorf("payload market %d, want 7", payload.Market)
	}
}

func TestTrail_GlobalRecordHasNoMarket(t *testing.T) {
	trail := audit.NewTrail(zerolog.Nop(), nil)
	ch := trail.Subscribe("test", 1)

	trail.Record(event.FuseAdded{Fuse: testutil.Addr(1)})
	trail.Close()

	if env := <-ch; env.MarketID != nil {
		t.Errorf("market id %v, want nil for a vault-global record", env.MarketID)
	}
}

// ============================================================================
// Test: fan-out
// ============================================================================

func TestTrail_FanOutToAllSubscribers(t *testing.T) {
	trail := audit.NewTrail(zerolog.Nop(), nil)
	a := trail.Subscribe("a", 4)
	b := trail.Subscribe("b", 4)

	trail.Record(event.MarketLimitsActivated{})
	trail.Close()

	for name, ch := range map[string]<-chan event.Envelope{"a": a, "b": b} {
		count := 0
		for range ch {
			count++
		}
		if count != 1 {
			t.Errorf("subscriber %s received %d envelopes, want 1", name, count)
		}
	}
}

// A full subscriber must not block Record; the envelope is dropped for that
// subscriber only.
func TestTrail_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	trail := audit.NewTrail(zerolog.Nop(), nil)
	slow := trail.Subscribe("slow", 1)
	fast := trail.Subscribe("fast", 8)

	trail.Record(event.MarketLimitsActivated{})
	trail.Record(event.MarketLimitsDeactivated{}) // dropped for slow
	trail.Close()

	slowCount := 0
	for range slow {
		slowCount++
	}
	if slowCount != 1 {
		t.Errorf("slow subscriber received %d, want 1 (second dropped)", slowCount)
	}

	fastCount := 0
	for range fast {
		fastCount++
	}
	if fastCount != 2 {
		t.Errorf("fast subscriber received %d, want 2", fastCount)
	}

	// Sequence numbering is unaffected by drops.
	if trail.Sequence() != 2 {
		t.Errorf("sequence %d, want 2", trail.Sequence())
	}
}
