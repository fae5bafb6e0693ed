package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsSerializationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "serialization", err: &pq.Error{Code: "40001"}, want: true},
		{name: "wrapped", err: fmt.Errorf("reconcile engagement: %w", &pq.Error{Code: "40001"}), want: true},
		{name: "deadlock", err: &pq.Error{Code: "40P01"}, want: false},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSerializationFailure(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRetrySerialization(t *testing.T) {
	conflict := fmt.Errorf("reconcile post counts: %w", &pq.Error{Code: "40001"})
	boom := errors.New("boom")

	tests := []struct {
		name      string
		results   []error
		wantErr   error
		wantCalls int
	}{
		{name: "first try", results: []error{nil}, wantCalls: 1},
		{name: "succeeds after a conflict", results: []error{conflict, nil}, wantCalls: 2},
		{name: "gives up after the last attempt", results: []error{conflict, conflict, conflict}, wantErr: conflict, wantCalls: 3},
		{name: "other errors are not retried", results: []error{boom}, wantErr: boom, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retrySerialization(context.Background(), 3, func() error {
				err := tt.results[calls]
				calls++
				return err
			})

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestRetrySerialization_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := retrySerialization(ctx, 3, func() error {
		calls++
		cancel()
		return &pq.Error{Code: "40001"}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one call, got %d", calls)
	}
}
