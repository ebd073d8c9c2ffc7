// Package passthru implements a stacking connector that forwards every
// operation to the connector beneath it, optionally compressing dataset and
// attribute payloads on the way down.
//
// The connector beneath is named in the info blob:
//
//	{"under_name":"native","compression":"zstd","compression_level":"better"}
//
// Every object the pass-through connector hands out wraps the object of the
// connector beneath it. Wrapping is transparent to callers of the library;
// the wrap callbacks let it re-wrap objects that surface from below, such as
// the targets of external links.
package passthru

import (
	"context"
	"unsafe"

	"github.com/ajitpratap0/hvol/pkg/compression"
	"github.com/ajitpratap0/hvol/pkg/config"
	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/connector/plugin"
	"github.com/ajitpratap0/hvol/pkg/errors"
	jsonpool "github.com/ajitpratap0/hvol/pkg/json"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"go.uber.org/zap"
)

const (
	// Name is the registered name of the pass-through connector
	Name = "passthru"
	// Version is the pass-through connector's class version
	Version uint32 = 1
)

func init() {
	plugin.MustRegister(&plugin.ConnectorInfo{
		Name:         Name,
		Value:        core.ValuePassthru,
		Description:  "Forwards to another connector, optionally compressing payloads",
		Version:      Version,
		Capabilities: []string{"stacking", "compression"},
		Factory: func(reg core.Registry) (*core.Class, error) {
			if reg == nil {
				return nil, errors.New(errors.ErrorTypeRegistration, "pass-through connector needs a registry to reach the connector beneath it")
			}
			return NewClass(reg), nil
		},
	})
}

// Info configures one use of the pass-through connector
type Info struct {
	// UnderName selects the connector beneath by name
	UnderName string `json:"under_name,omitempty"`
	// UnderValue selects the connector beneath by value when UnderName is empty
	UnderValue int `json:"under_value,omitempty"`
	// UnderInfo is the serialized info of the connector beneath
	UnderInfo string `json:"under_info,omitempty"`
	// Compression is none, gzip, snappy, lz4, zstd or s2; empty uses the
	// connector's configured default
	Compression string `json:"compression,omitempty"`
	// CompressionLevel is fastest, default, better or best
	CompressionLevel string `json:"compression_level,omitempty"`
}

func (i *Info) selector() core.Selector {
	if i.UnderName != "" {
		return core.ByName(i.UnderName)
	}
	return core.ByValue(core.Value(i.UnderValue))
}

type connector struct {
	class    *core.Class
	reg      core.Registry
	defaults config.PassthruConfig
	logger   *zap.Logger
}

// NewClass returns a pass-through connector class that acquires the
// connector beneath it from reg
func NewClass(reg core.Registry) *core.Class {
	c := &connector{
		reg:      reg,
		defaults: config.NewPassthruConfig(),
		logger:   logger.With(zap.String("component", "passthru_connector")),
	}
	c.class = &core.Class{
		ProtocolVersion: core.ProtocolVersion,
		Value:           core.ValuePassthru,
		Name:            Name,
		Version:         Version,
		CapFlags:        core.CapStacking | core.CapCompression | core.CapThreadSafe,
		Initialize:      c.initialize,
		Terminate:       c.terminate,
		Info: core.InfoClass{
			Size:       int(unsafe.Sizeof(Info{})),
			Copy:       copyInfo,
			Compare:    compareInfo,
			Free:       func(any) error { return nil },
			ToString:   infoToString,
			FromString: infoFromString,
		},
		Wrap: core.WrapClass{
			GetObject:    getObject,
			GetWrapCtx:   getWrapCtx,
			WrapObject:   wrapObject,
			UnwrapObject: unwrapObject,
			FreeWrapCtx:  freeWrapCtx,
		},
		File:       fileOps{c},
		Group:      groupOps{c},
		Dataset:    datasetOps{c},
		Datatype:   datatypeOps{c},
		Attr:       attrOps{c},
		Map:        mapOps{c},
		Link:       linkOps{c},
		Object:     objectOps{c},
		Introspect: introspectOps{c},
	}
	return c.class
}

func (c *connector) initialize(_ context.Context, vipl any) error {
	switch p := vipl.(type) {
	case nil:
	case *config.PassthruConfig:
		c.defaults = *p
	case config.PassthruConfig:
		c.defaults = p
	default:
		return errors.Newf(errors.ErrorTypeConfig, "pass-through connector cannot use init params of type %T", vipl)
	}
	if err := c.defaults.Validate(); err != nil {
		return err
	}
	c.logger.Debug("pass-through connector initialized",
		zap.String("compression", c.defaults.CompressionAlgorithm),
		zap.String("level", c.defaults.CompressionLevel))
	return nil
}

func (c *connector) terminate(context.Context) error {
	c.logger.Debug("pass-through connector terminated")
	return nil
}

func asInfo(info any) (*Info, error) {
	switch i := info.(type) {
	case nil:
		return &Info{UnderName: "native"}, nil
	case *Info:
		return i, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "expected pass-through info, got %T", info)
	}
}

func copyInfo(info any) (any, error) {
	i, err := asInfo(info)
	if err != nil {
		return nil, err
	}
	cp := *i
	return &cp, nil
}

func compareInfo(a, b any) (int, error) {
	ia, err := asInfo(a)
	if err != nil {
		return 0, err
	}
	ib, err := asInfo(b)
	if err != nil {
		return 0, err
	}
	sa, err := infoToString(ia)
	if err != nil {
		return 0, err
	}
	sb, err := infoToString(ib)
	if err != nil {
		return 0, err
	}
	switch {
	case sa < sb:
		return -1, nil
	case sa > sb:
		return 1, nil
	default:
		return 0, nil
	}
}

func infoToString(info any) (string, error) {
	i, err := asInfo(info)
	if err != nil {
		return "", err
	}
	data, err := jsonpool.Marshal(i)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "failed to serialize pass-through info")
	}
	return string(data), nil
}

// infoFromString parses the JSON form of Info. A bare connector name is
// accepted as shorthand for {"under_name": name}.
func infoFromString(s string) (any, error) {
	if s == "" {
		return &Info{UnderName: "native"}, nil
	}
	if s[0] != '{' {
		cc, err := config.ParseConnectorString(s)
		if err != nil {
			return nil, err
		}
		return &Info{UnderName: cc.Name, UnderValue: cc.Value, UnderInfo: cc.Info}, nil
	}
	var info Info
	if err := jsonpool.UnmarshalStrict([]byte(s), &info); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid pass-through info").WithDetail("info", s)
	}
	return &info, nil
}

// codecFor resolves the compressor an info blob asks for, falling back to the
// connector defaults. A nil compressor means payloads pass unchanged.
func (c *connector) codecFor(info *Info) (compression.Compressor, error) {
	alg, lvl := info.Compression, info.CompressionLevel
	if alg == "" {
		alg = c.defaults.CompressionAlgorithm
	}
	if lvl == "" {
		lvl = c.defaults.CompressionLevel
	}
	algorithm, err := compression.ParseAlgorithm(alg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid pass-through compression")
	}
	if algorithm == compression.None {
		return nil, nil
	}
	level, err := compression.ParseLevel(lvl)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid pass-through compression level")
	}
	return compression.Shared(compression.Config{Algorithm: algorithm, Level: level})
}

type introspectOps struct{ c *connector }

// GetConnectorClass reports the pass-through class at the current level and
// asks the connector beneath for the terminal one
func (o introspectOps) GetConnectorClass(ctx context.Context, obj any, level core.ConnLevel) (*core.Class, error) {
	if level == core.LevelCurrent {
		return o.c.class, nil
	}
	p, err := asObject(obj)
	if err != nil {
		return nil, err
	}
	under := p.conn.cls
	if under.Introspect == nil {
		return under, nil
	}
	return under.Introspect.GetConnectorClass(ctx, p.under, level)
}
