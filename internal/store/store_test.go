package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/northfieldai/ragcore/internal/domain"
)

func TestDecodeMetadataRoundTrips(t *testing.T) {
	m := decodeMetadata([]byte(`{"source":"upload","page":"3"}`))
	if m["source"] != "upload" || m["page"] != "3" {
		t.Fatalf("unexpected decode result: %v", m)
	}
}

func TestDecodeMetadataEmptyOrInvalidReturnsNil(t *testing.T) {
	if m := decodeMetadata(nil); m != nil {
		t.Fatalf("expected nil for empty input, got %v", m)
	}
	if m := decodeMetadata([]byte("not json")); m != nil {
		t.Fatalf("expected nil for invalid json, got %v", m)
	}
}

func TestClassifyQueryErrDeadlineVsUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	err := classifyQueryErr(ctx, "probe", errors.New("boom"))
	if !domain.Is(err, domain.KindDeadlineExceeded) {
		t.Fatalf("expected KindDeadlineExceeded when ctx is done, got %v", err)
	}

	err = classifyQueryErr(context.Background(), "probe", errors.New("boom"))
	if !domain.Is(err, domain.KindStoreUnreachable) {
		t.Fatalf("expected KindStoreUnreachable when ctx is live, got %v", err)
	}
}
