package jsondoc

import (
	"encoding/json"
	"strings"
)

// Field is one flattened column of a record.
type Field struct {
	Key   string
	Value string
}

// CleanKey keeps the part of a key before an annotation such as "author (作者)".
func CleanKey(raw string) string {
	if i := strings.Index(raw, " ("); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// Flatten turns a one-level-nested document into wide-table fields.
// Top-level scalars keep their key; members of a top-level object become
// "Section.key" with the annotation stripped from key. Anything nested deeper
// is rendered as compact JSON. cleanTop applies CleanKey to top-level scalar keys too.
func Flatten(obj *Object, cleanTop bool) []Field {
	out := make([]Field, 0, obj.Len())
	for _, section := range obj.Keys {
		v := obj.Values[section]
		inner, ok := v.(*Object)
		if !ok {
			key := section
			if cleanTop {
				key = CleanKey(section)
			}
			out = append(out, Field{Key: key, Value: Cell(v)})
			continue
		}
		for _, raw := range inner.Keys {
			out = append(out, Field{
				Key:   section + "." + CleanKey(raw),
				Value: Cell(inner.Values[raw]),
			})
		}
	}
	return out
}

// Cell renders a JSON value as spreadsheet text.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return Compact(v)
	}
}
