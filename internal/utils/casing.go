package utils

import (
	"strings"
	"unicode"

	"github.com/valyala/fastjson"
)

var (
	casingParsers fastjson.ParserPool
	casingArenas  fastjson.ArenaPool
)

// ToSnakeKeys rewrites every object key in the JSON document to snake_case.
// Values, array order and non-object documents are left untouched.
func ToSnakeKeys(data []byte) ([]byte, error) {
	return rewriteKeys(data, SnakeCase)
}

func rewriteKeys(data []byte, convert func(string) string) ([]byte, error) {
	p := casingParsers.Get()
	defer casingParsers.Put(p)
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, err
	}

	a := casingArenas.Get()
	defer casingArenas.Put(a)
	return rebuild(a, v, convert).MarshalTo(nil), nil
}

func rebuild(a *fastjson.Arena, v *fastjson.Value, convert func(string) string) *fastjson.Value {
	switch v.Type() {
	case fastjson.TypeObject:
		out := a.NewObject()
		obj, _ := v.Object()
		obj.Visit(func(key []byte, child *fastjson.Value) {
			out.Set(convert(string(key)), rebuild(a, child, convert))
		})
		return out
	case fastjson.TypeArray:
		out := a.NewArray()
		items, _ := v.Array()
		for i, item := range items {
			out.SetArrayItem(i, rebuild(a, item, convert))
		}
		return out
	default:
		return v
	}
}

// SnakeCase converts "requestPath" and "HTTPStatus" to "request_path" and "http_status".
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
