package plugin

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(name string, value core.Value) *ConnectorInfo {
	return &ConnectorInfo{
		Name:  name,
		Value: value,
		Factory: func(core.Registry) (*core.Class, error) {
			return &core.Class{ProtocolVersion: core.ProtocolVersion, Name: name, Value: value}, nil
		},
	}
}

func TestCatalog_RegisterAndLoad(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog()

	require.NoError(t, c.Register(entry("alpha", 200)))
	require.NoError(t, c.Register(entry("beta", 201)))

	cls, err := c.Load(ctx, core.ByName("alpha"), nil)
	require.NoError(t, err)
	assert.Equal(t, core.Value(200), cls.Value)

	cls, err = c.Load(ctx, core.ByValue(201), nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", cls.Name)

	_, err = c.Load(ctx, core.ByName("gamma"), nil)
	assert.True(t, errors.IsNotFound(err))

	infos := c.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
}

func TestCatalog_RejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(entry("alpha", 200)))

	assert.Error(t, c.Register(entry("alpha", 300)))
	assert.Error(t, c.Register(entry("other", 200)))
	assert.Error(t, c.Register(&ConnectorInfo{Name: "nofactory"}))
	assert.Error(t, c.Register(nil))
}

func TestCatalog_FactoryFailure(t *testing.T) {
	c := NewCatalog()
	cause := stderrors.New("missing dependency")
	require.NoError(t, c.Register(&ConnectorInfo{
		Name:    "broken",
		Value:   400,
		Factory: func(core.Registry) (*core.Class, error) { return nil, cause },
	}))
	require.NoError(t, c.Register(&ConnectorInfo{
		Name:    "empty",
		Value:   401,
		Factory: func(core.Registry) (*core.Class, error) { return nil, nil },
	}))

	_, err := c.Load(context.Background(), core.ByName("broken"), nil)
	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRegistration))

	_, err = c.Load(context.Background(), core.ByName("empty"), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRegistration))
}
