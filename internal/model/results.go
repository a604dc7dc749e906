package model

import (
	"bytes"
	"encoding/json"
)

// ResultRow is one display row of a flattened order. Exactly one of the
// three flags is set.
type ResultRow struct {
	IsSubtitulo     bool   `json:"isSubtitulo,omitempty"`
	IsResultado     bool   `json:"isResultado,omitempty"`
	IsMetodo        bool   `json:"isMetodo,omitempty"`
	Examen          string `json:"examen"`
	Resultado       string `json:"resultado,omitempty"`
	Unidad          string `json:"unidad,omitempty"`
	ValorReferencia string `json:"valor_referencia,omitempty"`
}

type ResultSection struct {
	Name string
	Rows []ResultRow
}

// SectionedResults maps section names to rows, keeping sections in the order
// they were first seen.
type SectionedResults struct {
	sections []*ResultSection
	index    map[string]int
}

func NewSectionedResults() *SectionedResults {
	return &SectionedResults{index: make(map[string]int)}
}

// Section returns the bucket for name, creating it at the end when missing.
func (r *SectionedResults) Section(name string) *ResultSection {
	if i, ok := r.index[name]; ok {
		return r.sections[i]
	}
	s := &ResultSection{Name: name, Rows: []ResultRow{}}
	r.index[name] = len(r.sections)
	r.sections = append(r.sections, s)
	return s
}

func (r *SectionedResults) Sections() []*ResultSection {
	return r.sections
}

func (r *SectionedResults) Len() int {
	return len(r.sections)
}

func (r *SectionedResults) IsEmpty() bool {
	return len(r.sections) == 0
}

// Rows returns the rows of a section, nil when the section does not exist.
func (r *SectionedResults) Rows(name string) []ResultRow {
	if i, ok := r.index[name]; ok {
		return r.sections[i].Rows
	}
	return nil
}

// MarshalJSON writes an object whose keys follow section order.
func (r *SectionedResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range r.sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		rows, err := json.Marshal(s.Rows)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(rows)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
