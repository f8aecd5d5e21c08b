package classify

import (
	"context"
	"errors"
	"io/fs"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ExplicitMarkers(t *testing.T) {
	transient := Classify(Transient(errors.New("checkpoint flush failed")))
	assert.Equal(t, ClassTransient, transient.Class)
	assert.Equal(t, "explicit_transient", transient.Reason)

	terminal := Classify(Terminal(errors.New("checkpoint schema mismatch")))
	assert.Equal(t, ClassTerminal, terminal.Class)
	assert.Equal(t, "explicit_terminal", terminal.Reason)
}

func TestClassify_NilIsTerminal(t *testing.T) {
	decision := Classify(nil)
	assert.Equal(t, ClassTerminal, decision.Class)
	assert.Equal(t, "nil_error", decision.Reason)
}

func TestClassify_RepresentativeRuntimeErrors(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		expectedClass Class
	}{
		{
			name:          "context deadline exceeded is transient",
			err:           context.DeadlineExceeded,
			expectedClass: ClassTransient,
		},
		{
			name:          "context canceled is terminal",
			err:           context.Canceled,
			expectedClass: ClassTerminal,
		},
		{
			name:          "missing checkpoint file is terminal",
			err:           fs.ErrNotExist,
			expectedClass: ClassTerminal,
		},
		{
			name:          "enospc writing checkpoint is transient",
			err:           syscall.ENOSPC,
			expectedClass: ClassTransient,
		},
		{
			name:          "checkpoint schema mismatch message is terminal",
			err:           errors.New("checkpoint schema mismatch: want 1 got 2"),
			expectedClass: ClassTerminal,
		},
		{
			name:          "worker crashed message is transient",
			err:           errors.New("worker crashed while simulating batch 4000-5000"),
			expectedClass: ClassTransient,
		},
		{
			name:          "unknown message defaults terminal",
			err:           errors.New("completely unrecognized failure"),
			expectedClass: ClassTerminal,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			decision := Classify(tc.err)
			assert.Equal(t, tc.expectedClass, decision.Class)
		})
	}
}

func TestClassify_WrappedExplicitMarkerSurvives(t *testing.T) {
	marked := Transient(errors.New("inner"))
	wrapped := wrapErr{marked}
	assert.Equal(t, ClassTransient, Classify(wrapped).Class)
}

type wrapErr struct{ err error }

func (w wrapErr) Error() string { return "wrapped: " + w.err.Error() }
func (w wrapErr) Unwrap() error { return w.err }
