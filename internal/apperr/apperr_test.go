package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Conflict("slot taken")
	if KindOf(err) != KindConflict {
		t.Fatalf("expected KindConflict, got %v", KindOf(err))
	}
	wrapped := fmt.Errorf("creating booking: %w", err)
	if KindOf(wrapped) != KindConflict {
		t.Fatalf("kind should survive wrapping, got %v", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("plain errors must map to KindUnknown")
	}
}

func TestForbiddenAndNotFoundStayDistinct(t *testing.T) {
	forbidden := Forbidden("not your business")
	missing := NotFound("no such booking")
	if IsKind(forbidden, KindNotFound) {
		t.Fatal("forbidden must not match KindNotFound")
	}
	if IsKind(missing, KindForbidden) {
		t.Fatal("not-found must not match KindForbidden")
	}
}

func TestTransientUnwrap(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := Transient("commit failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("transient error should unwrap to its cause")
	}
	if KindOf(err) != KindTransient {
		t.Fatalf("expected KindTransient, got %v", KindOf(err))
	}
}
