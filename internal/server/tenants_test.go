package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTenants_OK(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "tenants.yaml")
	body := `version: 1
tenants:
  - id: 4a7f1f6e-6f6e-4a41-9d2b-3f8e2b9d1c01
    domain: aurora.petalhr.local
    name: Aurora Foods
`
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TENANTS_PATH", p)

	m, err := loadTenants()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	got, ok := m["aurora.petalhr.local"]
	if !ok {
		t.Fatalf("m=%v", m)
	}
	if got.ID != "4a7f1f6e-6f6e-4a41-9d2b-3f8e2b9d1c01" || got.Name != "Aurora Foods" {
		t.Fatalf("got=%+v", got)
	}
}

func TestLoadTenants_Errors(t *testing.T) {
	t.Cleanup(func() { _ = os.Unsetenv("TENANTS_PATH") })

	tmp := t.TempDir()

	pMissing := filepath.Join(tmp, "missing.yaml")
	if err := os.Setenv("TENANTS_PATH", pMissing); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTenants(); err == nil {
		t.Fatal("expected missing file error")
	}

	pBad := filepath.Join(tmp, "bad.yaml")
	if err := os.WriteFile(pBad, []byte{0xff}, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("TENANTS_PATH", pBad); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTenants(); err == nil {
		t.Fatal("expected yaml error")
	}

	pVer := filepath.Join(tmp, "ver.yaml")
	if err := os.WriteFile(pVer, []byte("version: 2\ntenants: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("TENANTS_PATH", pVer); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTenants(); err == nil {
		t.Fatal("expected version error")
	}

	pEmpty := filepath.Join(tmp, "empty.yaml")
	if err := os.WriteFile(pEmpty, []byte("version: 1\ntenants: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("TENANTS_PATH", pEmpty); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTenants(); err == nil {
		t.Fatal("expected empty error")
	}

	pInvalid := filepath.Join(tmp, "invalid.yaml")
	if err := os.WriteFile(pInvalid, []byte("version: 1\ntenants:\n  - id: \"\"\n    domain: \"x\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("TENANTS_PATH", pInvalid); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTenants(); err == nil {
		t.Fatal("expected invalid tenant error")
	}
}

func TestDefaultTenantsPath(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	p, err := defaultTenantsPath()
	if err != nil {
		t.Fatal(err)
	}
	if p == "" {
		t.Fatal("empty path")
	}

	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = defaultTenantsPath()
	if err == nil {
		t.Fatal("expected error")
	}
}
