package extractor

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed scoring.schema.json
var signalsSchemaJSON string

var signalsSchema = mustSchema(signalsSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("extractor: invalid embedded schema: %v", err))
	}
	return s
}

// validateReply checks a model reply against the signals schema. Values are
// range-clamped afterwards, so only shape is enforced here.
func validateReply(raw []byte) error {
	result, err := signalsSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate llm reply: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("llm reply does not match schema: %s", strings.Join(msgs, "; "))
}
