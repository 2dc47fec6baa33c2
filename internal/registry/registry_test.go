package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuildUnknownType(t *testing.T) {
	r := New[string, int]()
	_, err := r.Build("missing", "cfg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := New[string, int]()
	r.Register("double", func(cfg string) (int, error) {
		return len(cfg) * 2, nil
	})

	got, err := r.Build("double", "ab")
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestRegistry_SecondRegistrationReplacesFirst(t *testing.T) {
	r := New[string, int]()
	r.Register("name", func(cfg string) (int, error) { return 1, nil })
	r.Register("name", func(cfg string) (int, error) { return 2, nil })

	got, err := r.Build("name", "")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestRegistry_Names(t *testing.T) {
	r := New[string, int]()
	r.Register("a", func(cfg string) (int, error) { return 0, nil })
	r.Register("b", func(cfg string) (int, error) { return 0, nil })

	names := r.Names()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}
