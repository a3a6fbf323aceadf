package store

import (
	"context"
	"testing"
	"time"
)

func TestDBOptionsDefaults(t *testing.T) {
	got := DBOptions{}.normalize()
	if got.MaxOpenConns != 10 {
		t.Fatalf("MaxOpenConns = %d, want 10", got.MaxOpenConns)
	}
	if got.MaxIdleConns != 5 {
		t.Fatalf("MaxIdleConns = %d, want 5", got.MaxIdleConns)
	}
	if got.ConnMaxLifetime != time.Hour {
		t.Fatalf("ConnMaxLifetime = %v, want 1h", got.ConnMaxLifetime)
	}
}

func TestDBOptionsExplicitValuesKept(t *testing.T) {
	in := DBOptions{MaxOpenConns: 40, MaxIdleConns: 8, ConnMaxLifetime: 15 * time.Minute}
	if got := in.normalize(); got != in {
		t.Fatalf("normalize changed explicit options: %+v", got)
	}
}

func TestDBHealthyNilSafe(t *testing.T) {
	var d *DB
	if d.Healthy(context.Background()) {
		t.Fatalf("nil DB reported healthy")
	}
	if (&DB{}).Healthy(context.Background()) {
		t.Fatalf("DB without a client reported healthy")
	}
}
