package results

import (
	"encoding/json"
	"strconv"
	"strings"
)

type object = map[string]interface{}

// accessor reads one logical field from an upstream object, "" when absent.
type accessor func(object) string

// Orion names the same field differently depending on the endpoint and
// version. Each chain is tried in order and the first non-empty value wins.
var (
	examName = chain(
		field("nombre_examen"),
		field("nombre"),
		field("codigo"),
		nested("examen", "nombre"),
	)
	analyteName = chain(
		field("nombre_parametro"),
		field("nombre"),
		field("descripcion"),
	)
	resultValue = chain(
		field("resultado"),
		field("resultado_texto"),
		field("resultado_numerico"),
	)
	unit = chain(
		field("unidad_medida"),
		field("unidad"),
	)
	referenceRange = chain(
		field("valor_referencia_texto"),
		between("valor_minimo", "valor_maximo"),
	)
	sectionName = chain(
		field("seccion"),
		nested("seccion", "nombre"),
	)
	technique = chain(
		field("tecnica"),
		field("metodo"),
	)
)

func chain(accessors ...accessor) accessor {
	return func(o object) string {
		for _, get := range accessors {
			if v := get(o); v != "" {
				return v
			}
		}
		return ""
	}
}

func field(key string) accessor {
	return func(o object) string {
		return stringify(o[key])
	}
}

func nested(key, inner string) accessor {
	return func(o object) string {
		child, ok := o[key].(object)
		if !ok {
			return ""
		}
		return stringify(child[inner])
	}
}

// between renders "min – max" when both bounds are present.
func between(minKey, maxKey string) accessor {
	return func(o object) string {
		lo, hi := stringify(o[minKey]), stringify(o[maxKey])
		if lo == "" || hi == "" {
			return ""
		}
		return lo + " – " + hi
	}
}

// stringify renders scalars. Objects, arrays and null read as "".
func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func objects(v interface{}) []object {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]object, 0, len(items))
	for _, item := range items {
		if o, ok := item.(object); ok {
			out = append(out, o)
		}
	}
	return out
}
