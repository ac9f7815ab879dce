// Package dagcbor decodes and encodes the deterministic CBOR flavor used
// by content-addressed blocks: maps keyed by strings, arrays, and CID links
// carried as tag 42 byte strings with an identity multibase prefix.
package dagcbor

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// linkTag is the IPLD tag number for CID links.
const linkTag = 42

var decMode cbor.DecMode
var encMode cbor.EncMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Decode parses data into a tree of nil, bool, int64, float64, string,
// []byte, []any, map[string]any, and cid.Cid values.
func Decode(data []byte) (any, error) {
	var raw any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return resolveLinks(raw)
}

func resolveLinks(v any) (any, error) {
	switch x := v.(type) {
	case cbor.Tag:
		if x.Number != linkTag {
			return nil, fmt.Errorf("unexpected cbor tag %d", x.Number)
		}
		return castLink(x.Content)
	case []any:
		for i, elem := range x {
			resolved, err := resolveLinks(elem)
			if err != nil {
				return nil, err
			}
			x[i] = resolved
		}
		return x, nil
	case map[string]any:
		for k, elem := range x {
			resolved, err := resolveLinks(elem)
			if err != nil {
				return nil, err
			}
			x[k] = resolved
		}
		return x, nil
	default:
		return v, nil
	}
}

func castLink(content any) (cid.Cid, error) {
	raw, ok := content.([]byte)
	if !ok {
		return cid.Undef, errors.New("cid link is not a byte string")
	}
	if len(raw) == 0 || raw[0] != 0 {
		return cid.Undef, errors.New("cid link missing identity multibase prefix")
	}
	c, err := cid.Cast(raw[1:])
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid cid link: %w", err)
	}
	return c, nil
}

// Encode marshals a tree produced by (or shaped like the output of) Decode
// back to deterministic CBOR. cid.Cid values become tag 42 links.
func Encode(v any) ([]byte, error) {
	prepared, err := injectLinks(v)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(prepared)
}

func injectLinks(v any) (any, error) {
	switch x := v.(type) {
	case cid.Cid:
		buf := make([]byte, 0, 1+len(x.Bytes()))
		buf = append(buf, 0)
		buf = append(buf, x.Bytes()...)
		return cbor.Tag{Number: linkTag, Content: buf}, nil
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			prepared, err := injectLinks(elem)
			if err != nil {
				return nil, err
			}
			out[i] = prepared
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			prepared, err := injectLinks(elem)
			if err != nil {
				return nil, err
			}
			out[k] = prepared
		}
		return out, nil
	default:
		return v, nil
	}
}
