package principal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := NewContext(context.Background(), &Base{ID: "reviewer-1", Roles: []string{"reviewer"}})

	p, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-1", p.GetID())
	assert.Equal(t, []string{"reviewer"}, p.GetRoles())
}

func TestFromContextWithoutActor(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoActor)
}
