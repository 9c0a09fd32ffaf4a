package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	cases := map[string]struct {
		kind *Error
		err  error
		want bool
	}{
		"instance of the root error": {
			kind: ErrNotFound,
			err:  ErrNotFound,
			want: true,
		},
		"wrapped root error": {
			kind: ErrNotFound,
			err:  Wrap(ErrNotFound, "gone"),
			want: true,
		},
		"double wrapped root error": {
			kind: ErrState,
			err:  Wrap(Wrap(ErrState, "inner"), "outer"),
			want: true,
		},
		"different root error": {
			kind: ErrNotFound,
			err:  ErrUnauthorized,
			want: false,
		},
		"stdlib error": {
			kind: ErrNotFound,
			err:  fmt.Errorf("not found"),
			want: false,
		},
		"nil error": {
			kind: ErrNotFound,
			err:  nil,
			want: false,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.kind.Is(tc.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "ignored"); err != nil {
		t.Fatalf("wrapping nil must return nil, got %+v", err)
	}
	if err := Wrapf(nil, "ignored %d", 42); err != nil {
		t.Fatalf("wrapping nil must return nil, got %+v", err)
	}
}

func TestWrapMessage(t *testing.T) {
	err := Wrap(ErrTransfer, "rail rejected")
	assert.Equal(t, "rail rejected: transfer failed", err.Error())
}

func TestCode(t *testing.T) {
	cases := map[string]struct {
		err  error
		want uint32
	}{
		"nil":            {err: nil, want: 0},
		"root":           {err: ErrFee, want: 8},
		"wrapped":        {err: Wrapf(ErrDuration, "%d days", 900), want: 7},
		"deeply wrapped": {err: Wrap(Wrap(ErrEmpty, "a"), "b"), want: 12},
		"foreign":        {err: fmt.Errorf("boom"), want: 1},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			assert.Equal(t, tc.want, Code(tc.err))
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("registering a used code must panic")
		}
	}()
	Register(2, "duplicate of unauthorized")
}

func TestRecover(t *testing.T) {
	var err error
	func() {
		defer Recover(&err)
		panic("totally unexpected")
	}()
	assert.True(t, ErrPanic.Is(err))
}
