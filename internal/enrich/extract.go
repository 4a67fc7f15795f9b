package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoEnrichment is wrapped by every enrichment failure.
	ErrNoEnrichment = errors.New("no enrichment")

	ErrNoArray       = fmt.Errorf("%w: reply contains no JSON array", ErrNoEnrichment)
	ErrMalformed     = fmt.Errorf("%w: reply array is not valid JSON", ErrNoEnrichment)
	ErrCountMismatch = fmt.Errorf("%w: reply item count differs from request", ErrNoEnrichment)
)

// ExtractArray returns the text between the first '[' and the last ']' of a
// free-form model reply, provided it parses as a JSON array. Prose and code
// fences around the array are ignored.
func ExtractArray(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < start {
		return nil, ErrNoArray
	}
	candidate := text[start : end+1]
	if !gjson.Valid(candidate) {
		return nil, ErrMalformed
	}
	if !gjson.Parse(candidate).IsArray() {
		return nil, ErrMalformed
	}
	return json.RawMessage(candidate), nil
}
