package access

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Middleware(t *testing.T) {
	s := NewService([]int64{42, 7}, zerolog.Nop())

	assert.NoError(t, s.Middleware(42))
	assert.True(t, s.CanAccess(7))

	err := s.Middleware(13)
	require.Error(t, err)
	assert.True(t, IsAccessDenied(err))
	assert.True(t, IsAccessDenied(fmt.Errorf("wrapped: %w", err)))
	assert.Contains(t, err.Error(), "13")
}

func TestService_EmptyListDeniesEveryone(t *testing.T) {
	s := NewService(nil, zerolog.Nop())
	assert.False(t, s.CanAccess(1))
	assert.False(t, IsAccessDenied(nil))
}
