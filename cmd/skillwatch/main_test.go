package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodeErrorCarriesCodeThroughWrapping(t *testing.T) {
	base := validationFailure(errors.New("skill failed validation"))
	wrapped := fmt.Errorf("apply widget-skill: %w", base)

	var ece *exitCodeError
	require.True(t, errors.As(wrapped, &ece))
	require.Equal(t, 1, ece.code)

	base2 := operationalFailure(errors.New("store unavailable"))
	require.True(t, errors.As(base2, &ece))
	require.Equal(t, 2, ece.code)
}

func TestExitCodeErrorUnwrapsToUnderlyingError(t *testing.T) {
	underlying := errors.New("boom")
	err := operationalFailure(underlying)
	require.ErrorIs(t, err, underlying)
}
