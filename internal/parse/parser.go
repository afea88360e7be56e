// Package parse recovers structured lists and keyed objects from free-form
// language model output.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNoStructuredList is returned when no JSON list can be recovered from a response
var ErrNoStructuredList = errors.New("no structured list found")

// Parser extracts JSON arrays or objects from model responses.
// A Parser is immutable and safe for concurrent use.
type Parser struct {
	object        *regexp.Regexp
	list          *regexp.Regexp
	trailingComma *regexp.Regexp
	log           zerolog.Logger
}

// New creates a parser that reports degraded parses to log
func New(log zerolog.Logger) *Parser {
	return &Parser{
		object:        regexp.MustCompile(`(?s)\{.*?\}`),
		list:          regexp.MustCompile(`(?s)\[.*?\]`),
		trailingComma: regexp.MustCompile(`,\s*(\])`),
		log:           log,
	}
}

// Parse decodes text as a whole JSON value and, failing that, scrapes the
// first object or list out of surrounding prose and code fences.
func (p *Parser) Parse(text string) (Result, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		if res, err := FromValue(v); err == nil {
			return res, nil
		}
	}
	return p.scrape(text)
}

// FromValue classifies an already decoded JSON value.
// Strings become one-element lists, lists are trimmed with blanks dropped,
// and objects are returned as-is when every value is a string list.
func FromValue(v any) (Result, error) {
	switch val := v.(type) {
	case string:
		return List(cleanItems([]string{val})), nil
	case []any:
		items, err := stringsOf(val)
		if err != nil {
			return Result{}, err
		}
		return List(cleanItems(items)), nil
	case map[string]any:
		keyed, err := keyedOf(val)
		if err != nil {
			return Result{}, err
		}
		return Keyed(keyed), nil
	case nil:
		return Scalar("null"), nil
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return Result{}, fmt.Errorf("encode scalar: %w", err)
		}
		return Scalar(string(raw)), nil
	}
}

// scrape looks for the first brace or bracket delimited region in text
func (p *Parser) scrape(text string) (Result, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	if strings.Contains(cleaned, "{") && strings.Contains(cleaned, "}") {
		if match := p.object.FindString(cleaned); match != "" {
			var obj map[string]any
			if err := json.Unmarshal([]byte(match), &obj); err == nil {
				if keyed, err := keyedOf(obj); err == nil {
					return Keyed(keyed), nil
				}
			}
		}
	}

	match := p.list.FindString(cleaned)
	if match == "" {
		return Result{}, ErrNoStructuredList
	}
	repaired := p.trailingComma.ReplaceAllString(match, "$1")

	var v any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoStructuredList, err)
	}

	var raw []any
	switch val := v.(type) {
	case string:
		raw = []any{val}
	case []any:
		raw = val
	}

	items := make([]string, 0, len(raw))
	for _, el := range raw {
		s, ok := el.(string)
		if !ok {
			p.log.Warn().
				Str("json", repaired).
				Str("response", text).
				Msgf("list element of type %T is not a string, skipping response", el)
			return List(nil), nil
		}
		items = append(items, s)
	}

	return List(cleanItems(items)), nil
}

// cleanItems trims every item and drops the blank ones, keeping order
func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func stringsOf(values []any) ([]string, error) {
	out := make([]string, 0, len(values))
	for i, el := range values {
		s, ok := el.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not a string", i, el)
		}
		out = append(out, s)
	}
	return out, nil
}

func keyedOf(obj map[string]any) (map[string][]string, error) {
	out := make(map[string][]string, len(obj))
	for key, value := range obj {
		items, err := stringList(key, value)
		if err != nil {
			return nil, err
		}
		out[key] = items
	}
	return out, nil
}

// SelectKeyed builds a Keyed result from the given keys of obj only.
// Absent keys are skipped; other keys in obj are never inspected.
func SelectKeyed(obj map[string]any, keys []string) (Result, error) {
	out := make(map[string][]string, len(keys))
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		items, err := stringList(key, value)
		if err != nil {
			return Result{}, err
		}
		out[key] = items
	}
	return Keyed(out), nil
}

// stringList accepts a string list, or a bare string as a one-element list
func stringList(key string, value any) ([]string, error) {
	switch val := value.(type) {
	case string:
		return []string{val}, nil
	case []any:
		items, err := stringsOf(val)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("key %q holds %T, not a string list", key, value)
	}
}
