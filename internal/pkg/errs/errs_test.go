package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelpersWrapSentinels(t *testing.T) {
	assert.ErrorIs(t, NotFound("order", 7), ErrNotFound)
	assert.ErrorIs(t, InvalidTransition("PAID", "CREATED"), ErrInvalidTransition)
	assert.ErrorIs(t, InvalidState("order already has a driver"), ErrInvalidState)
	assert.ErrorIs(t, Conflict("lost the race"), ErrConflict)
	assert.ErrorIs(t, External("redis get", errors.New("timeout")), ErrExternalService)
}

func TestWrappingSurvivesFurtherLayers(t *testing.T) {
	inner := NotFound("driver", 3)
	outer := fmt.Errorf("accept order: %w", inner)
	assert.ErrorIs(t, outer, ErrNotFound)
}

func TestMessagesCarryContext(t *testing.T) {
	assert.EqualError(t, NotFound("order", 7), "order #7: object not found")
	assert.EqualError(t, InvalidTransition("PAID", "CREATED"), "cannot transition from PAID to CREATED: invalid status transition")
}
