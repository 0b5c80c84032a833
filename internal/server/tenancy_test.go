package server

import (
	"context"
	"testing"
)

func TestStaticTenancyResolver(t *testing.T) {
	r := newStaticTenancyResolver(map[string]Tenant{
		"Aurora.PetalHR.Local": {ID: "t1", Domain: "aurora.petalhr.local", Name: "Aurora Foods"},
	})

	got, ok, err := r.ResolveTenant(context.Background(), "  AURORA.petalhr.local ")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !ok || got.ID != "t1" {
		t.Fatalf("ok=%v got=%+v", ok, got)
	}

	_, ok, err = r.ResolveTenant(context.Background(), "unknown.petalhr.local")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}

	_, ok, err = r.ResolveTenant(context.Background(), "")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ok {
		t.Fatal("expected miss for empty hostname")
	}
}
