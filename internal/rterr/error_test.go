package rterr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/rterr"
)

func TestNewErrorFormatsCategoryAndCode(t *testing.T) {
	err := rterr.New(rterr.Memory, rterr.MemoryOutOfBudget, "scope budget exceeded")
	require.Equal(t, rterr.Memory, err.Category())
	require.Equal(t, rterr.MemoryOutOfBudget, err.Code())
	require.Equal(t, "scope budget exceeded", err.Message())
	require.Equal(t, "Memory/0: scope budget exceeded", err.Error())
}

func TestWrapChainsCauseForUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := rterr.Wrap(rterr.Parse, rterr.ParseBadLEB, "malformed LEB128 integer", cause)

	require.ErrorIs(t, wrapped, cause)
	require.Contains(t, wrapped.Error(), "underlying")
}

func TestWithOffsetDoesNotMutateOriginal(t *testing.T) {
	base := rterr.ErrBadUTF8()
	offsetted := base.WithOffset(42)

	_, baseHas := base.Offset()
	require.False(t, baseHas)

	off, has := offsetted.Offset()
	require.True(t, has)
	require.EqualValues(t, 42, off)
	require.Contains(t, offsetted.Error(), "at offset 42")
}

func TestIsMatchesOnCategoryAndCodeOnly(t *testing.T) {
	a := rterr.New(rterr.Runtime, rterr.RuntimeFuelExhausted, "first message")
	b := rterr.New(rterr.Runtime, rterr.RuntimeFuelExhausted, "different message")

	require.True(t, rterr.Is(a, rterr.Runtime, rterr.RuntimeFuelExhausted))
	require.True(t, errors.Is(a, b))
}

func TestIsRejectsNonRterrErrors(t *testing.T) {
	require.False(t, rterr.Is(errors.New("plain"), rterr.Core, 0))
}

func TestCategoryStringUnknownFallsBack(t *testing.T) {
	require.Equal(t, "Unknown", rterr.Category(255).String())
	require.Equal(t, "Safety", rterr.Safety.String())
}

func TestConvenienceConstructorsCarryExpectedCategory(t *testing.T) {
	cases := []struct {
		err      *rterr.Error
		category rterr.Category
		code     rterr.Code
	}{
		{rterr.ErrCapacityExceeded(), rterr.Memory, rterr.MemoryCapacityExceeded},
		{rterr.ErrResourceLeaked(), rterr.Component, rterr.ComponentResourceLeaked},
		{rterr.ErrLevelLowerAttempt(), rterr.Safety, rterr.SafetyLevelLowerAttempt},
		{rterr.ErrHostUnavailable(), rterr.System, rterr.SystemHostUnavailable},
	}
	for _, c := range cases {
		require.Equal(t, c.category, c.err.Category())
		require.Equal(t, c.code, c.err.Code())
	}
}
