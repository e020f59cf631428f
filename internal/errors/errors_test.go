package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAttachesMetadata(t *testing.T) {
	t.Parallel()

	err := Newf("fetch failed: %s", "birds").
		Category(CategoryNetwork).
		Component("catalog").
		Context("category", "birds").
		Build()

	assert.Equal(t, "fetch failed: birds", err.Error())
	assert.Equal(t, CategoryNetwork, err.GetCategory())
	assert.Equal(t, "catalog", err.Component)
	assert.Equal(t, "birds", err.GetContext()["category"])
}

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("plain").Build()

	assert.Equal(t, CategoryGeneric, err.GetCategory())
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Nil(t, err.GetContext())
}

func TestCategoryOfUnwrapsChain(t *testing.T) {
	t.Parallel()

	inner := Newf("deadline exceeded").Category(CategoryTimeout).Build()
	wrapped := fmt.Errorf("submit image: %w", inner)

	assert.Equal(t, CategoryTimeout, CategoryOf(wrapped))
	assert.True(t, IsTimeout(wrapped))
	assert.False(t, HasCategory(wrapped, CategoryNetwork))
}

func TestIsMatchesByCategory(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryDataIntegrity).Build()
	b := Newf("b").Category(CategoryDataIntegrity).Build()
	c := Newf("c").Category(CategoryNetwork).Build()

	require.True(t, Is(a, b))
	require.False(t, Is(a, c))
}

func TestContextCopyIsIsolated(t *testing.T) {
	t.Parallel()

	err := Newf("x").Context("k", "v").Build()
	ctx := err.GetContext()
	ctx["k"] = "mutated"

	assert.Equal(t, "v", err.GetContext()["k"])
}
