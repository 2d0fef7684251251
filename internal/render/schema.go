package render

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// KindSchema is the JSON schema of the data payload of one result kind.
type KindSchema struct {
	Kind   Kind               `json:"kind"`
	Schema *jsonschema.Schema `json:"schema"`
}

// SchemaDocument describes the JSON envelope and every payload it can carry.
type SchemaDocument struct {
	SchemaVersion string             `json:"schemaVersion"`
	Envelope      *jsonschema.Schema `json:"envelope"`
	Kinds         []KindSchema       `json:"kinds"`
}

func prototype(k Kind) any {
	switch k {
	case KindCalendars:
		return calendarsJSON{}
	case KindEvents:
		return []eventJSON{}
	case KindReminders:
		return []reminderJSON{}
	case KindAgenda:
		return agendaJSON{}
	case KindSummary:
		return summaryJSON{}
	case KindFreeSlots:
		return freeSlotsJSON{}
	case KindCurrentTime:
		return timeInfoJSON{}
	case KindTimeConversion:
		return conversionJSON{}
	case KindTimezones:
		return timezonesJSON{}
	}
	return nil
}

// Schema builds the schema document from the structs the JSON encoder uses,
// so the two cannot drift apart.
func Schema() SchemaDocument {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}

	doc := SchemaDocument{
		SchemaVersion: SchemaVersion,
		Envelope:      r.Reflect(envelope{}),
		Kinds:         make([]KindSchema, 0, len(Kinds)),
	}
	for _, k := range Kinds {
		doc.Kinds = append(doc.Kinds, KindSchema{Kind: k, Schema: r.Reflect(prototype(k))})
	}
	return doc
}

// SchemaJSON returns the schema document as indented JSON.
func SchemaJSON() (string, error) {
	b, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	return string(b) + "\n", nil
}
