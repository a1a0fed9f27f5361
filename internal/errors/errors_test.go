package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(ErrNotRegistered, "soup \"Contacts\" is not registered")
	if !strings.Contains(err.Error(), "[NOT_REGISTERED]") {
		t.Errorf("Error() = %q, want code prefix", err.Error())
	}

	cause := stderrors.New("disk full")
	wrapped := Wrap(ErrDatabase, "insert failed", cause)
	if !strings.HasSuffix(wrapped.Error(), "disk full") {
		t.Errorf("Error() = %q, want cause suffix", wrapped.Error())
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestIs(t *testing.T) {
	inner := New(ErrNotIndexed, "no index on Name")
	outer := Wrap(ErrMalformedQuery, "bad smart sql", inner)
	viaFmt := fmt.Errorf("query: %w", outer)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"direct", inner, ErrNotIndexed, true},
		{"outer code", outer, ErrMalformedQuery, true},
		{"inner code through chain", outer, ErrNotIndexed, true},
		{"through fmt wrap", viaFmt, ErrNotIndexed, true},
		{"absent code", viaFmt, ErrNotFound, false},
		{"plain error", stderrors.New("x"), ErrNotFound, false},
		{"nil", nil, ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is(%v, %s) = %v, want %v", tt.err, tt.code, got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("run: %w", Newf(ErrInvalidRerun, "sync %d is not a soql sync down", 3))
	if got := CodeOf(err); got != ErrInvalidRerun {
		t.Errorf("CodeOf() = %q, want %q", got, ErrInvalidRerun)
	}
	if got := CodeOf(stderrors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}
