package apperr

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	notFound := New(ErrNotFound, "thing: not found")
	conflict := New(ErrConflict, "thing: duplicated")

	tests := []struct {
		name string
		err  error
		want *Kind
	}{
		{name: "sentinel", err: notFound, want: ErrNotFound},
		{name: "wrapped with fmt", err: fmt.Errorf("load: %w", conflict), want: ErrConflict},
		{name: "wrapped with details", err: WithDetails(New(ErrValidation, "bad"), map[string]string{"size": "too small"}), want: ErrValidation},
		{name: "unmarked", err: errors.New("boom"), want: ErrInternal},
		{name: "upstream wrap", err: Wrap(errors.New("s3 down"), ErrUpstream, "blob put"), want: ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Same(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelIdentitySurvivesMarking(t *testing.T) {
	t.Parallel()

	sentinel := New(ErrNotFound, "employee: not found")
	wrapped := fmt.Errorf("find: %w", sentinel)

	require.ErrorIs(t, wrapped, sentinel)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrConflict))
}

func TestDetailsOf(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("validate: %w", WithDetails(New(ErrValidation, "invalid request"), map[string]string{"email": "required"}))

	assert.Equal(t, map[string]string{"email": "required"}, DetailsOf(err))
	assert.Nil(t, DetailsOf(errors.New("plain")))
	assert.Nil(t, WithDetails(nil, map[string]string{"a": "b"}))
}

func TestSentinelsOfSameKindAreDistinct(t *testing.T) {
	t.Parallel()

	employeeMissing := New(ErrNotFound, "employee: not found")
	departmentMissing := New(ErrNotFound, "department: not found")

	assert.False(t, errors.Is(employeeMissing, departmentMissing))
	assert.False(t, errors.Is(fmt.Errorf("load: %w", employeeMissing), departmentMissing))
	assert.True(t, errors.Is(departmentMissing, ErrNotFound))
}

func TestWrapAs(t *testing.T) {
	t.Parallel()

	storeFailure := New(ErrUpstream, "blob: store failure")
	cause := errors.New("connection reset")

	err := WrapAs(cause, storeFailure, "blob: put profiles/x")

	require.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, storeFailure))
	assert.Same(t, ErrUpstream, KindOf(err))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), "blob: put profiles/x")
	assert.Nil(t, WrapAs(nil, storeFailure, "noop"))
}

func TestWrapAs_DoesNotMatchSiblingSentinels(t *testing.T) {
	t.Parallel()

	storeFailure := New(ErrUpstream, "blob: store failure")
	objectMissing := New(ErrUpstream, "blob: stored object is missing")

	err := fmt.Errorf("open: %w", WrapAs(errors.New("timeout"), storeFailure, "blob: open profiles/x"))

	assert.True(t, errors.Is(err, storeFailure))
	assert.False(t, errors.Is(err, objectMissing))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWrap_MarksKindOnly(t *testing.T) {
	t.Parallel()

	cause := errors.New("strconv: invalid syntax")
	err := Wrap(cause, ErrValidation, "invalid parameter size")

	require.ErrorIs(t, err, cause)
	assert.Same(t, ErrValidation, KindOf(err))
	assert.Equal(t, "invalid parameter size: strconv: invalid syntax", err.Error())
	assert.Nil(t, Wrap(nil, ErrValidation, "noop"))
}
