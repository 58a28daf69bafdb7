package page

import (
	"encoding/hex"

	"github.com/goccy/go-json"
)

type jsonField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type jsonPage struct {
	Name   string      `json:"name"`
	Fields []jsonField `json:"fields"`
}

// MarshalJSON keeps field order and renders binary values as hex.
func (p *Page) MarshalJSON() ([]byte, error) {
	out := jsonPage{Name: p.Name, Fields: make([]jsonField, 0, len(p.fields))}
	for _, f := range p.fields {
		v := f.Value()
		if f.Type == Bytes {
			v = hex.EncodeToString(f.b)
		}
		out.Fields = append(out.Fields, jsonField{Name: f.Name, Type: f.Type.String(), Value: v})
	}
	return json.Marshal(out)
}
