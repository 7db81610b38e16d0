// internal/logging/context_test.go
package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, TenantFromContext(ctx))
	assert.Empty(t, DocumentFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithTenant(ctx, "planovo")
	ctx = WithDocument(ctx, "faq.md")
	ctx = WithRequestID(ctx, "r-1")

	assert.Equal(t, "planovo", TenantFromContext(ctx))
	assert.Equal(t, "faq.md", DocumentFromContext(ctx))
	assert.Equal(t, "r-1", RequestIDFromContext(ctx))
}

func TestEmptyValuesIgnored(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ctx, WithTenant(ctx, ""))
	assert.Equal(t, ctx, WithDocument(ctx, ""))
	assert.Equal(t, ctx, WithRequestID(ctx, ""))
}

func TestContextFieldsEmptyContext(t *testing.T) {
	fields := ContextFields(context.Background())
	assert.Empty(t, fields)
}

func TestFromContextFallsBackToNop(t *testing.T) {
	logger := FromContext(context.Background())
	assert.NotNil(t, logger)

	stored := NewTestLogger()
	ctx := WithLogger(context.Background(), stored.Logger)
	assert.Same(t, stored.Logger, FromContext(ctx))
}
