package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
)

func TestThrottle_NilAllowsAll(t *testing.T) {
	th := newThrottle(0, 0, clock.NewVirtualClock(epoch))
	for i := 0; i < 100; i++ {
		if ok, _ := th.allow("c"); !ok {
			t.Fatal("disabled throttle denied a request")
		}
	}
}

func TestThrottle_ExhaustAndRefill(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	// 6 per minute = 1 per 10 seconds, burst 2.
	th := newThrottle(6, 2, vc)

	for i := 0; i < 2; i++ {
		if ok, _ := th.allow("c"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, retry := th.allow("c")
	if ok {
		t.Fatal("third request should be denied")
	}
	if retry < 9990*time.Millisecond || retry > 10010*time.Millisecond {
		t.Errorf("retry = %v, want 10s", retry)
	}

	// Other clients have their own bucket.
	if ok, _ := th.allow("other"); !ok {
		t.Error("separate key should be allowed")
	}

	vc.Advance(10 * time.Second)
	if ok, _ := th.allow("c"); !ok {
		t.Error("request after refill should be allowed")
	}
	if ok, _ := th.allow("c"); ok {
		t.Error("only one token should have refilled")
	}
}

func (t *throttle) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

func TestThrottle_SweepsIdleBuckets(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	th := newThrottle(60, 2, vc)

	th.allow("idle")
	th.allow("busy")
	th.allow("busy")
	if th.size() != 2 {
		t.Fatalf("size = %d, want 2", th.size())
	}

	// "idle" is full again after a second; "busy" spends its tokens again
	// right before the sweep.
	vc.Advance(sweepInterval - time.Second)
	th.allow("busy")
	th.allow("busy")
	vc.Advance(time.Second)
	th.allow("new")

	if th.size() != 2 {
		t.Errorf("size after sweep = %d, want 2", th.size())
	}
	if _, ok := th.buckets["idle"]; ok {
		t.Error("idle bucket should have been pruned")
	}
	if _, ok := th.buckets["busy"]; !ok {
		t.Error("busy bucket should be kept")
	}
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/sessions/demo/replay", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientKey(r, false); got != "10.0.0.7" {
		t.Errorf("clientKey(untrusted) = %q, want %q", got, "10.0.0.7")
	}
	if got := clientKey(r, true); got != "203.0.113.9" {
		t.Errorf("clientKey(trusted) = %q, want %q", got, "203.0.113.9")
	}

	r.Header.Del("X-Forwarded-For")
	if got := clientKey(r, true); got != "10.0.0.7" {
		t.Errorf("clientKey(trusted, no header) = %q, want %q", got, "10.0.0.7")
	}
}
