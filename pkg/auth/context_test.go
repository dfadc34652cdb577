package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/quillio/quill-engine/pkg/apperrors"
	"github.com/quillio/quill-engine/pkg/models"
)

func TestScopeRoundTrip(t *testing.T) {
	scope, err := models.NewTenantScope([]string{"11111111-1111-1111-1111-111111111111"})
	if err != nil {
		t.Fatalf("bad scope: %v", err)
	}

	ctx := WithScope(context.Background(), scope)

	got, ok := ScopeFromContext(ctx)
	if !ok {
		t.Fatal("scope not found in context")
	}
	if got.Len() != 1 || !got.Contains("11111111-1111-1111-1111-111111111111") {
		t.Errorf("unexpected scope: %v", got.IDs())
	}
}

func TestRequireScope(t *testing.T) {
	_, err := RequireScope(context.Background())
	if !errors.Is(err, apperrors.ErrNoTenantScope) {
		t.Fatalf("got %v, want ErrNoTenantScope", err)
	}

	ctx := WithScope(context.Background(), models.TenantScope{})
	_, err = RequireScope(ctx)
	if !errors.Is(err, apperrors.ErrNoTenantScope) {
		t.Fatalf("empty scope: got %v, want ErrNoTenantScope", err)
	}
}
