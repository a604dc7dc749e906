// Package results turns Orion order payloads into per-section display rows.
package results

import (
	"bytes"
	"encoding/json"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

const DefaultSection = "GENERAL"

// FlattenOrder walks detallesOrdenes → reportes → detallesReportes in source
// order. Each line item contributes a subtitle row, its result rows and an
// optional method row to its section. Malformed rows degrade to empty
// strings; only a payload that is not a JSON object is an error. The order
// may be wrapped as {"data": order}.
func FlattenOrder(raw json.RawMessage) (*model.SectionedResults, error) {
	order, err := decodeOrder(raw)
	if err != nil {
		return nil, err
	}

	out := model.NewSectionedResults()
	for _, item := range objects(order["detallesOrdenes"]) {
		name := sectionName(item)
		if name == "" {
			name = DefaultSection
		}
		section := out.Section(name)

		section.Rows = append(section.Rows, model.ResultRow{
			IsSubtitulo: true,
			Examen:      examName(item),
		})

		for _, report := range objects(item["reportes"]) {
			for _, param := range objects(report["detallesReportes"]) {
				section.Rows = append(section.Rows, model.ResultRow{
					IsResultado:     true,
					Examen:          analyteName(param),
					Resultado:       resultValue(param),
					Unidad:          unit(param),
					ValorReferencia: referenceRange(param),
				})
			}
		}

		if method := technique(item); method != "" {
			section.Rows = append(section.Rows, model.ResultRow{
				IsMetodo: true,
				Examen:   "Método: " + method,
			})
		}
	}
	return out, nil
}

func decodeOrder(raw json.RawMessage) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var order object
	if err := dec.Decode(&order); err != nil || order == nil {
		return nil, apperrors.BadRequest("order payload is not a JSON object", err)
	}

	if _, ok := order["detallesOrdenes"]; !ok {
		if inner, ok := order["data"].(object); ok {
			return inner, nil
		}
	}
	return order, nil
}
