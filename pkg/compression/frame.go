package compression

import "fmt"

var algorithmTags = map[Algorithm]byte{
	None:   0,
	Gzip:   1,
	Snappy: 2,
	LZ4:    3,
	Zstd:   4,
	S2:     5,
}

// Frame compresses data with c and prefixes the result with c's algorithm tag
func Frame(c Compressor, data []byte) ([]byte, error) {
	tag, ok := algorithmTags[c.Algorithm()]
	if !ok {
		return nil, fmt.Errorf("no frame tag for algorithm %s", c.Algorithm())
	}
	body, err := c.Compress(data)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, tag)
	return append(out, body...), nil
}

// Unframe reads the algorithm tag written by Frame and decompresses the rest
func Unframe(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, fmt.Errorf("framed payload is empty")
	}
	for alg, tag := range algorithmTags {
		if tag != framed[0] {
			continue
		}
		c, err := Shared(Config{Algorithm: alg, Level: Default})
		if err != nil {
			return nil, err
		}
		return c.Decompress(framed[1:])
	}
	return nil, fmt.Errorf("unknown frame tag %d", framed[0])
}
