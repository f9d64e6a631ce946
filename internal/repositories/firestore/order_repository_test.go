package firestore

import (
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNextOrderSequenceStartsAtOneWhenCounterMissing(t *testing.T) {
	next, err := nextOrderSequence(nil, status.Error(codes.NotFound, "no counter document"))
	if err != nil {
		t.Fatalf("missing counter must start the sequence: %v", err)
	}
	if next != 1 {
		t.Fatalf("expected first sequence value 1, got %d", next)
	}
}

func TestNextOrderSequencePropagatesReadFailures(t *testing.T) {
	cases := []struct {
		name string
		code codes.Code
	}{
		{"unavailable", codes.Unavailable},
		{"permissionDenied", codes.PermissionDenied},
		{"deadlineExceeded", codes.DeadlineExceeded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			readErr := status.Error(tc.code, "counter read failed")
			next, err := nextOrderSequence(nil, readErr)
			if err == nil {
				t.Fatalf("expected read failure to abort, got sequence %d", next)
			}
			if status.Code(err) != tc.code {
				t.Fatalf("expected original status preserved, got %v", err)
			}
		})
	}
}
