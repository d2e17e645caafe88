package extension

import (
	"strings"
	"testing"

	"github.com/xraph/grove"

	"github.com/xraph/tierbill/store/memory"
)

func TestBuildStoreDefaultsToMemory(t *testing.T) {
	e := &Extension{config: DefaultConfig()}
	if err := e.buildStore(); err != nil {
		t.Fatalf("buildStore: %v", err)
	}
	if _, ok := e.store.(*memory.Store); !ok {
		t.Fatalf("expected in-memory store, got %T", e.store)
	}
}

func TestBuildStoreProgrammaticStoreWins(t *testing.T) {
	s := memory.New()
	e := &Extension{config: Config{Backend: "postgres"}, store: s}
	if err := e.buildStore(); err != nil {
		t.Fatalf("buildStore: %v", err)
	}
	if e.store != s {
		t.Error("programmatic store should take precedence over config")
	}
}

func TestBuildStoreRejectsDatabaseWithoutPersistentBackend(t *testing.T) {
	// WithGroveDB alone leaves Backend on the memory default; the
	// mismatch must fail with a message naming the valid backends
	// instead of an opaque unknown-backend error.
	for _, backend := range []string{"", "memory"} {
		e := &Extension{config: Config{Backend: backend}, groveDB: new(grove.DB)}
		err := e.buildStore()
		if err == nil {
			t.Fatalf("backend %q with a grove database: expected error", backend)
		}
		if !strings.Contains(err.Error(), "sqlite") {
			t.Errorf("backend %q: error should name the valid backends, got %q", backend, err)
		}
	}
}

func TestBuildStoreRejectsUnknownBackend(t *testing.T) {
	e := &Extension{config: Config{Backend: "dynamo"}, groveDB: new(grove.DB)}
	if err := e.buildStore(); err == nil {
		t.Fatal("unknown backend: expected error")
	}
}

func TestBuildStoreRequiresDatabaseForPersistentBackend(t *testing.T) {
	for _, backend := range []string{"sqlite", "postgres", "mongo"} {
		e := &Extension{config: Config{Backend: backend}}
		if err := e.buildStore(); err == nil {
			t.Fatalf("backend %q without a grove database: expected error", backend)
		}
	}
}
