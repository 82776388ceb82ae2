package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a decoded payload. JSON payloads land in Data as the generic
// tree produced by encoding/json; HTML payloads also keep the parsed DOM.
type Document struct {
	URL  string
	Raw  []byte
	Data any
	HTML *goquery.Document
	// Companion holds the decoded companion payload of a good, if any.
	Companion any
	// Aux holds a secondary payload embedded in the same page.
	Aux any
}

// DecodeJSON parses a JSON body.
func DecodeJSON(body []byte) (any, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return data, nil
}

// EmbeddedJSON extracts the first match of re from body and decodes it. When
// re has a capture group the first group is decoded, otherwise the whole
// match.
func EmbeddedJSON(body []byte, re *regexp.Regexp) (any, error) {
	m := re.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("embedded json %q not found", re.String())
	}
	raw := m[0]
	if len(m) > 1 {
		raw = m[1]
	}
	data, err := DecodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("embedded json %q: %w", re.String(), err)
	}
	return data, nil
}

// Lookup walks data along path. String elements index objects, int elements
// index arrays.
func Lookup(data any, path ...any) (any, bool) {
	cur := data
	for _, key := range path {
		switch k := key.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = obj[k]; !ok {
				return nil, false
			}
		case int:
			arr, ok := cur.([]any)
			if !ok || k < 0 || k >= len(arr) {
				return nil, false
			}
			cur = arr[k]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns the string at path or "". Numbers are formatted.
func String(data any, path ...any) string {
	v, ok := Lookup(data, path...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Number returns the finite number at path. Numeric strings such as "4 990"
// or "1234.00" are accepted; "NaN" and "Inf" are not.
func Number(data any, path ...any) (float64, bool) {
	v, ok := Lookup(data, path...)
	if !ok {
		return 0, false
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), " ", ""), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// List returns the array at path or nil.
func List(data any, path ...any) []any {
	v, ok := Lookup(data, path...)
	if !ok {
		return nil
	}
	arr, _ := v.([]any)
	return arr
}

var digitsRe = regexp.MustCompile(`\d+`)

// Digits parses the first run of digits in s after removing spaces, so
// "12 990 ₽" yields 12990.
func Digits(s string) (float64, bool) {
	s = strings.Join(strings.Fields(s), "")
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
