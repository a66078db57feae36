package metrics

import (
	"context"
	"testing"
)

func TestRecorder_NoSDKInstalled(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	r.RecordSweep(ctx, 1)
	r.RecordAlert(ctx, 2)
	r.RecordDispatchError(ctx, "transient")
	r.RecordEndpointPruned(ctx)
	r.RecordDoseLogs(ctx, "manual", 1)
}

func TestRecorder_NilIsSafe(t *testing.T) {
	r := Nop()

	ctx := context.Background()
	r.RecordSweep(ctx, 3)
	r.RecordAlert(ctx, 2)
	r.RecordDispatchError(ctx, "transient")
	r.RecordEndpointPruned(ctx)
	r.RecordDoseLogs(ctx, "backfill", 4)
}

func TestRecipientBucket(t *testing.T) {
	cases := map[int]string{
		0:  "0",
		1:  "1",
		2:  "2-5",
		5:  "2-5",
		6:  "6+",
		40: "6+",
	}
	for n, want := range cases {
		if got := recipientBucket(n); got != want {
			t.Errorf("recipientBucket(%d) = %q, want %q", n, got, want)
		}
	}
}
