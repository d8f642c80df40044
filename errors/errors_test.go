package errors_test

import (
	stderrors "errors"
	"testing"

	liberr "github.com/sabouaram/peerlink/errors"
)

func TestErrorCodeRoundTrip(t *testing.T) {
	parent := stderrors.New("socket unreachable")
	err := liberr.New(liberr.CodeTransportError, parent)

	if err.Code() != liberr.CodeTransportError {
		t.Fatalf("expected code %v, got %v", liberr.CodeTransportError, err.Code())
	}
	if !err.IsCode(liberr.CodeTransportError) {
		t.Fatalf("IsCode should match the constructing code")
	}
	if !stderrors.Is(err, parent) {
		t.Fatalf("errors.Is should see through to the parent")
	}
	if err.Site() == "" {
		t.Fatalf("expected a captured call site")
	}
}

func TestErrorWithoutParent(t *testing.T) {
	err := liberr.New(liberr.CodeServerFull, nil)
	if err.Error() != "server full" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
