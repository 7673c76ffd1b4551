package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver()
	require.NoError(t, err)
	return r
}

func TestResolve_CanonicalName(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "CN", r.Resolve("China"))
	assert.Equal(t, "DE", r.Resolve("Germany"))
	assert.Equal(t, "BD", r.Resolve("Bangladesh"))
}

func TestResolve_CaseInsensitive(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "CN", r.Resolve("china"))
	assert.Equal(t, "CN", r.Resolve("CHINA"))
	assert.Equal(t, "CN", r.Resolve("  China  "))
}

func TestResolve_Aliases(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "CN", r.Resolve("People's Republic of China"))
	assert.Equal(t, "CN", r.Resolve("PRC"))
	assert.Equal(t, "US", r.Resolve("USA"))
	assert.Equal(t, "US", r.Resolve("United States"))
	assert.Equal(t, "BR", r.Resolve("Brasil"))
}

func TestResolve_CodePassthrough(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "CN", r.Resolve("CN"))
	assert.Equal(t, "CN", r.Resolve("cn"))
}

func TestResolve_UnknownReturnsLowercasedInput(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "atlantis", r.Resolve("Atlantis"))
	assert.Equal(t, "", r.Resolve("   "))
}

func TestIsCode(t *testing.T) {
	r := newTestResolver(t)
	assert.True(t, r.IsCode("CN"))
	assert.True(t, r.IsCode("cn"))
	assert.False(t, r.IsCode("China"))
	assert.False(t, r.IsCode("ZZ"))
	assert.False(t, r.IsCode(""))
}
