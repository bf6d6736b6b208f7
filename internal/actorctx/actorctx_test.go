package actorctx

import (
	"context"
	"testing"
)

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "u-1")

	got, ok := UserIDFrom(ctx)
	if !ok || got != "u-1" {
		t.Fatalf("got (%q, %v), want (\"u-1\", true)", got, ok)
	}
}

func TestUserIDFrom_MissingOrEmpty(t *testing.T) {
	if _, ok := UserIDFrom(context.Background()); ok {
		t.Fatalf("expected no user id on bare context")
	}

	if _, ok := UserIDFrom(WithUserID(context.Background(), "")); ok {
		t.Fatalf("expected empty user id to be rejected")
	}
}
