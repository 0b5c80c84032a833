package httperr

import "testing"

func TestIsBadRequest(t *testing.T) {
	if IsBadRequest(nil) {
		t.Fatalf("expected false for nil")
	}
	if IsBadRequest(NewBadRequest("bad")) != true {
		t.Fatalf("expected true for BadRequestError")
	}
	if IsBadRequest(assertErr("other")) {
		t.Fatalf("expected false for non-BadRequestError")
	}
	if IsBadRequest(NewNotFound("missing")) {
		t.Fatalf("expected false for NotFoundError")
	}
}

func TestIsNotFound(t *testing.T) {
	if IsNotFound(nil) {
		t.Fatalf("expected false for nil")
	}
	if IsNotFound(NewNotFound("missing")) != true {
		t.Fatalf("expected true for NotFoundError")
	}
	if IsNotFound(NewBadRequest("bad")) {
		t.Fatalf("expected false for BadRequestError")
	}
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
