package tierbill_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/tierbill"
	"github.com/xraph/tierbill/store/memory"
	"github.com/xraph/tierbill/tier"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		l := tierbill.New(store,
			tierbill.WithLogger(slog.Default()),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		// One-time bootstrap
		if err := l.Initialize(ctx, "acct_admin"); err != nil {
			t.Fatal(err)
		}

		// Subscribe by paying the exact tier price
		sub, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500))
		if err != nil {
			t.Fatal(err)
		}
		if sub.CreditsRemaining != 100 {
			t.Errorf("expected 100 starter credits, got %d", sub.CreditsRemaining)
		}

		// Report usage
		remaining, err := l.Consume(ctx, "acct_1", 30, "batch render")
		if err != nil {
			t.Fatal(err)
		}
		if remaining != 70 {
			t.Errorf("expected 70 credits remaining, got %d", remaining)
		}

		// Administrative operations carry the actor in context
		adminCtx := tierbill.WithActor(ctx, "acct_admin")
		if err := l.UpdateTierPrice(adminCtx, tier.Pro, tierbill.USD(4900)); err != nil {
			t.Fatal(err)
		}

		price, err := l.GetTierPrice(ctx, tier.Pro)
		if err != nil {
			t.Fatal(err)
		}
		if !price.Equal(tierbill.USD(4900)) {
			t.Errorf("expected updated pro price, got %s", price)
		}
	})
}
