package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to the original")
		}
	})

	t.Run("Structural", func(t *testing.T) {
		err := Structural("empty node name", "")
		if !IsCode(err, CodeStructural) {
			t.Fatalf("expected structural code, got %v", err)
		}
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected DomainError")
		}
		if _, ok := de.Context[CtxSymbol]; !ok {
			t.Errorf("expected symbol context, got %v", de.Context)
		}
	})

	t.Run("AddContextForeign", func(t *testing.T) {
		err := AddContext(fmt.Errorf("boom"), CtxModule, "pkg.mod")
		if !IsCode(err, CodeInternal) {
			t.Errorf("expected foreign error to become internal, got %v", err)
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		err := fmt.Errorf("stage failed: %w", New(CodeConfiguration, "invalid operation"))
		if !IsCode(err, CodeConfiguration) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
		if IsCode(err, CodeStructural) {
			t.Error("expected IsCode to return false for CodeStructural")
		}
	})
}
