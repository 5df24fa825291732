package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(f *Failover) *Failover {
	f.sleep = func(time.Duration) {}
	return f
}

func TestFailoverNoCredentials(t *testing.T) {
	f := noSleep(NewFailover())
	_, err := f.GenerateText(context.Background(), "hi")
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestFailoverFirstCredentialSucceeds(t *testing.T) {
	primary := NewFakeClient("primary", FakeResult{Text: "ok"})
	secondary := NewFakeClient("secondary", FakeResult{Text: "never"})
	f := noSleep(NewFailover(primary, secondary))

	text, err := f.GenerateText(context.Background(), "hi")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "ok" {
		t.Fatalf("got %q", text)
	}
	if len(secondary.Calls) != 0 {
		t.Fatal("secondary must not be called when primary succeeds")
	}
}

func TestFailoverRetriesSameCredentialOnce(t *testing.T) {
	flaky := NewFakeClient("flaky",
		FakeResult{Err: errors.New("boom")},
		FakeResult{Text: "recovered"},
	)
	f := noSleep(NewFailover(flaky))

	text, err := f.GenerateText(context.Background(), "hi")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("got %q", text)
	}
	if len(flaky.Calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(flaky.Calls))
	}
}

func TestFailoverQuotaErrorSkipsToNextCredential(t *testing.T) {
	limited := NewFakeClient("limited", FakeResult{Err: errors.New("googleapi: Error 429: rate limited")})
	backup := NewFakeClient("backup", FakeResult{Text: "from backup"})
	f := noSleep(NewFailover(limited, backup))

	text, err := f.GenerateText(context.Background(), "hi")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "from backup" {
		t.Fatalf("got %q", text)
	}
	if len(limited.Calls) != 1 {
		t.Fatalf("quota error must not be retried on the same credential, got %d attempts", len(limited.Calls))
	}
}

func TestFailoverInvalidKeySkipsToNextCredential(t *testing.T) {
	bad := NewFakeClient("bad", FakeResult{Err: errors.New("API_KEY_INVALID")})
	good := NewFakeClient("good", FakeResult{Text: "fine"})
	f := noSleep(NewFailover(bad, good))

	text, err := f.GenerateText(context.Background(), "hi")
	if err != nil || text != "fine" {
		t.Fatalf("got %q, %v", text, err)
	}
	if len(bad.Calls) != 1 {
		t.Fatalf("expected 1 attempt on the invalid key, got %d", len(bad.Calls))
	}
}

func TestFailoverExhaustionCarriesLastError(t *testing.T) {
	lastErr := errors.New("final failure")
	a := NewFakeClient("a", FakeResult{Err: errors.New("first failure")})
	b := NewFakeClient("b", FakeResult{Err: lastErr})
	f := noSleep(NewFailover(a, b))

	_, err := f.GenerateText(context.Background(), "hi")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if !errors.Is(err, lastErr) {
		t.Fatalf("exhaustion must carry the last underlying error, got %v", exhausted.Last)
	}
	if len(a.Calls) != 2 || len(b.Calls) != 2 {
		t.Fatalf("expected 2 attempts per credential, got %d and %d", len(a.Calls), len(b.Calls))
	}
}

func TestFailoverStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	failing := NewFakeClient("failing", FakeResult{Err: errors.New("boom")})
	f := noSleep(NewFailover(failing))

	_, err := f.GenerateText(ctx, "hi")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestQuotaOrAuthClassification(t *testing.T) {
	for _, msg := range []string{"status 429", "RESOURCE_EXHAUSTED", "API_KEY_INVALID", "PERMISSION_DENIED", "quota exceeded"} {
		if !quotaOrAuth(errors.New(msg)) {
			t.Fatalf("%q should classify as quota/auth", msg)
		}
	}
	if quotaOrAuth(errors.New("connection reset")) {
		t.Fatal("transient error misclassified")
	}
	if quotaOrAuth(nil) {
		t.Fatal("nil error misclassified")
	}
}
