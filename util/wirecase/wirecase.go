// Package wirecase translates JSON object keys between the camelCase used by
// our payload types and the snake_case used on the wire.
//
// Documents are parsed into a closed set of node types (Object, Array,
// Scalar) so that key rewriting walks every nesting level explicitly.
package wirecase

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/goccy/go-json"
)

// Value is a parsed JSON node: Object, Array or Scalar
type Value interface {
	isValue()
}

// Object is a JSON object. Key order is not preserved.
type Object map[string]Value

// Array is a JSON array
type Array []Value

// Scalar holds a string, json.Number, bool or nil
type Scalar struct {
	V any
}

func (Object) isValue() {}
func (Array) isValue()  {}
func (Scalar) isValue() {}

var (
	upperExpr      = regexp2.MustCompile(`([A-Z])`, 0)
	underscoreExpr = regexp2.MustCompile(`_([a-z])`, 0)
)

// ToSnake converts a camelCase key: largeImage -> large_image
func ToSnake(key string) string {
	out, err := upperExpr.ReplaceFunc(key, func(m regexp2.Match) string {
		return "_" + strings.ToLower(m.String())
	}, -1, -1)
	if err != nil {
		return key
	}
	return out
}

// ToCamel converts a snake_case key: large_image -> largeImage
func ToCamel(key string) string {
	out, err := underscoreExpr.ReplaceFunc(key, func(m regexp2.Match) string {
		return strings.ToUpper(m.GroupByNumber(1).String())
	}, -1, -1)
	if err != nil {
		return key
	}
	return out
}

// RenameKeys returns a copy of v with rename applied to every object key at every depth.
// Array elements are walked; scalars are returned unchanged.
func RenameKeys(v Value, rename func(string) string) Value {
	switch n := v.(type) {
	case Object:
		out := make(Object, len(n))
		for k, child := range n {
			out[rename(k)] = RenameKeys(child, rename)
		}
		return out
	case Array:
		out := make(Array, len(n))
		for i, child := range n {
			out[i] = RenameKeys(child, rename)
		}
		return out
	default:
		return v
	}
}

// Parse decodes a JSON document into a Value tree
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromAny(raw)
}

// Marshal encodes a Value tree as JSON
func Marshal(v Value) ([]byte, error) {
	return json.Marshal(toAny(v))
}

// Encode marshals v with its camelCase tags and rewrites every key to snake_case
func Encode(v any) ([]byte, error) {
	camel, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	tree, err := Parse(camel)
	if err != nil {
		return nil, err
	}
	return Marshal(RenameKeys(tree, ToSnake))
}

// Decode rewrites every snake_case key in data to camelCase and unmarshals into out
func Decode(data []byte, out any) error {
	tree, err := Parse(data)
	if err != nil {
		return err
	}
	camel, err := Marshal(RenameKeys(tree, ToCamel))
	if err != nil {
		return err
	}
	return json.Unmarshal(camel, out)
}

func fromAny(raw any) (Value, error) {
	switch n := raw.(type) {
	case map[string]any:
		obj := make(Object, len(n))
		for k, child := range n {
			v, err := fromAny(child)
			if err != nil {
				return nil, err
			}
			obj[k] = v
		}
		return obj, nil
	case []any:
		arr := make(Array, len(n))
		for i, child := range n {
			v, err := fromAny(child)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case nil, string, bool, json.Number, float64:
		return Scalar{V: n}, nil
	default:
		return nil, fmt.Errorf("wirecase: unsupported JSON node %T", raw)
	}
}

func toAny(v Value) any {
	switch n := v.(type) {
	case Object:
		out := make(map[string]any, len(n))
		for k, child := range n {
			out[k] = toAny(child)
		}
		return out
	case Array:
		out := make([]any, len(n))
		for i, child := range n {
			out[i] = toAny(child)
		}
		return out
	case Scalar:
		return n.V
	default:
		return nil
	}
}
