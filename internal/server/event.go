package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
)

// Event is the API-Gateway-style envelope accepted by POST /events.
type Event struct {
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

const eventSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["body"],
  "properties": {
    "headers": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "string"}
    },
    "body": {"type": "string"},
    "isBase64Encoded": {"type": "boolean"}
  }
}`

var eventSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("event.json", strings.NewReader(eventSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("event.json")
})

// ParseEvent validates raw against the event schema and converts it.
func ParseEvent(raw []byte, source string) (core.Invocation, error) {
	schema, err := eventSchema()
	if err != nil {
		return core.Invocation{}, fmt.Errorf("compile event schema: %w", err)
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return core.Invocation{}, common.NewKindError(common.KindInvalidInput, "event is not valid JSON", err)
	}
	if err := schema.Validate(v); err != nil {
		return core.Invocation{}, common.NewKindError(common.KindInvalidInput, "event does not match schema", err)
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return core.Invocation{}, common.NewKindError(common.KindInvalidInput, "event is not valid JSON", err)
	}
	return InvocationFromHeaders(ev.Headers, []byte(ev.Body), ev.IsBase64Encoded, source), nil
}

// InvocationFromHeaders builds an Invocation from case-insensitive headers.
// "X-Body-Encoding: base64" also marks the body as base64.
func InvocationFromHeaders(headers map[string]string, body []byte, isBase64 bool, source string) core.Invocation {
	if strings.EqualFold(strings.TrimSpace(Header(headers, "X-Body-Encoding")), "base64") {
		isBase64 = true
	}
	return core.Invocation{
		Filename:    Header(headers, "filename"),
		ContentType: Header(headers, "Content-Type"),
		Body:        body,
		Base64:      isBase64,
		Source:      source,
	}
}

// Header looks name up case-insensitively.
func Header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
