package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liftlog/internal/apperr"
)

func TestNextMarkerMonotonic(t *testing.T) {
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		next := NextMarker(prev)
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestNextMarkerClockSkew(t *testing.T) {
	// A marker far in the future still advances by one.
	future := int64(1) << 50
	assert.Equal(t, future+1, NextMarker(future))
}

func TestValidateName(t *testing.T) {
	name, err := ValidateName("  Push Day  ", MaxDayNameLen, "day", "d1")
	require.NoError(t, err)
	assert.Equal(t, "Push Day", name)

	_, err = ValidateName("   ", MaxDayNameLen, "day", "d1")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	_, err = ValidateName(strings.Repeat("x", MaxDayNameLen+1), MaxDayNameLen, "day", "d1")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	// The developer detail names the offending record; the user
	// message does not leak it.
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Detail, "d1")
	assert.NotContains(t, verr.Message, "d1")

	// Exactly at the limit passes.
	_, err = ValidateName(strings.Repeat("x", MaxDayNameLen), MaxDayNameLen, "day", "d1")
	assert.NoError(t, err)
}

func TestSyncStatus(t *testing.T) {
	assert.True(t, StatusCreated.IsDirty())
	assert.True(t, StatusUpdated.IsDirty())
	assert.True(t, StatusDeleted.IsDirty())
	assert.False(t, StatusSynced.IsDirty())
	assert.False(t, SyncStatus("bogus").Valid())
}
