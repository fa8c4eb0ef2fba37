package migrate

import (
	"context"
	"testing"

	"peloton/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	v, err := Version(ctx, conn)
	if err != nil || v != 0 {
		t.Fatalf("fresh version = %d %v, want 0", v, err)
	}
	latest, err := Latest()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := MigrateContext(ctx, conn); err != nil {
			t.Fatalf("migrate pass %d: %v", i, err)
		}
		v, err := Version(ctx, conn)
		if err != nil || v != latest {
			t.Fatalf("version after pass %d = %d %v, want %d", i, v, err, latest)
		}
	}
}
