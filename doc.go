// Package tierbill provides an embeddable tiered-subscription payment
// ledger for Go applications.
//
// Tierbill is designed as a library, not a service. Import it directly
// into your Go application and back it with the store of your choice.
// It provides:
//
//   - A fixed tier catalog (starter, pro, teams) plus per-account
//     enterprise terms
//   - Exact-payment subscription lifecycle: subscribe, renew, cancel
//   - A per-account credit ledger with atomic consumption and bonus grants
//   - Role-gated authorization (administrator, platform, subscriber)
//   - Lifetime revenue accounting with guarded withdrawals
//   - An append-only event journal and typed plugin hooks
//   - Versioned state snapshots for migrating deployments
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/tierbill"
//	    "github.com/xraph/tierbill/store/memory"
//	)
//
//	// Create ledger (swap in store/postgres etc. backed by a grove.DB
//	// for durable deployments)
//	l := tierbill.New(memory.New())
//
//	// Start the engine (runs migrations)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	// One-time bootstrap
//	if err := l.Initialize(ctx, "acct_admin"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Core Concepts
//
// Accounts subscribe to a tier by paying its exact price:
//
//	sub, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500))
//
// Usage is reported against the account's credit balance:
//
//	remaining, err := l.Consume(ctx, "acct_1", 30, "batch render")
//
// Renewal extends the paid period from its previous end and resets
// credits to the tier allotment:
//
//	sub, err = l.Renew(ctx, "acct_1", tierbill.USD(1500))
//
// Administrative operations resolve their actor from the context:
//
//	ctx = tierbill.WithActor(ctx, "acct_admin")
//	err = l.UpdateTierPrice(ctx, tier.Pro, tierbill.USD(4900))
//
// # Semantics
//
// All monetary amounts use integer arithmetic in the smallest currency
// unit (cents for USD). Payments must match the current price exactly;
// overpayment is rejected, not credited. Mutating operations are
// serialized and atomic: a failed call leaves no partial writes. The
// payable surface carries a reentrancy guard, so a funds sink that calls
// back into the ledger during Withdraw fails fast instead of
// double-spending.
//
// # Stores
//
// Four store backends ship with the module:
//
//   - store/memory: in-process maps, for tests and demos
//   - store/sqlite: embedded SQLite via grove
//   - store/postgres: PostgreSQL via grove
//   - store/mongo: MongoDB via the official driver
package tierbill
