package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareClasses(t *testing.T) {
	base := func() *Class {
		return &Class{ProtocolVersion: ProtocolVersion, Value: 200, Name: "alpha", Version: 1, Info: InfoClass{Size: 8}}
	}

	a := base()
	assert.Equal(t, 0, CompareClasses(a, a))
	assert.Equal(t, 0, CompareClasses(a, base()), "same tuple is the same connector")

	tests := []struct {
		name   string
		mutate func(c *Class)
		want   int
	}{
		{name: "higher value", mutate: func(c *Class) { c.Value = 201 }, want: -1},
		{name: "lower value wins over name", mutate: func(c *Class) { c.Value = 199; c.Name = "zzz" }, want: 1},
		{name: "name decides on equal value", mutate: func(c *Class) { c.Name = "beta" }, want: -1},
		{name: "name before version", mutate: func(c *Class) { c.Name = "aaa"; c.Version = 0 }, want: 1},
		{name: "version", mutate: func(c *Class) { c.Version = 2 }, want: -1},
		{name: "info size", mutate: func(c *Class) { c.Info.Size = 4 }, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base()
			tt.mutate(b)
			assert.Equal(t, tt.want, CompareClasses(a, b))
			assert.Equal(t, -tt.want, CompareClasses(b, a))
		})
	}

	assert.Equal(t, -1, CompareClasses(nil, a))
	assert.Equal(t, 1, CompareClasses(a, nil))
	assert.Equal(t, 0, CompareClasses(nil, nil))
}

func TestCapFlags(t *testing.T) {
	caps := CapStacking | CapCompression
	assert.True(t, caps.Has(CapStacking))
	assert.False(t, caps.Has(CapStacking|CapAsync))
	assert.Equal(t, "stacking,compression", caps.String())
	assert.Empty(t, CapFlags(0).String())
}

func TestSelector(t *testing.T) {
	assert.Equal(t, "alpha", ByName("alpha").String())
	assert.Equal(t, "value:201", ByValue(201).String())
	assert.Equal(t, Value(-1), ByName("x").Value)
}

func TestRequest(t *testing.T) {
	var nilReq *Request
	nilReq.SetToken("ignored")
	assert.Nil(t, nilReq.Token())
	assert.False(t, nilReq.Pending())

	req := &Request{}
	assert.False(t, req.Pending())
	req.SetToken(42)
	assert.True(t, req.Pending())
	assert.Equal(t, 42, req.Token())
}

func TestObjectKind(t *testing.T) {
	assert.Equal(t, "dataset", KindDataset.String())
	assert.True(t, KindAttr.Valid())
	assert.False(t, ObjectKind(0).Valid())
	assert.Equal(t, "unknown", ObjectKind(99).String())
	assert.Equal(t, "external", LinkExternal.String())
}
