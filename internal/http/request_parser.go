package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const (
	maxBodyBytes        = 1 << 20
	defaultTransactions = 10
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errBodyInvalid  = errors.New("request body must be a JSON object")
	errLimitInvalid = errors.New("limit must be a positive number")
)

// JSONBody is a decoded JSON object. Numbers stay json.Number so the
// normalizer sees the client's exact digits.
type JSONBody map[string]any

// ParseJSONBody reads at most 1MB. An empty body yields an empty object.
func ParseJSONBody(w http.ResponseWriter, r *http.Request) (JSONBody, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return JSONBody{}, nil
	}
	if raw[0] != '{' {
		return nil, errBodyInvalid
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	body := JSONBody{}
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", errBodyInvalid, err)
	}
	return body, nil
}

// Has reports whether key was sent, even as null.
func (b JSONBody) Has(key string) bool {
	_, ok := b[key]
	return ok
}

// String returns a sanitized string value, or "" when key is absent or not
// a string.
func (b JSONBody) String(key string) string {
	s, _ := b[key].(string)
	return sanitizeInput(s)
}

// Without returns a copy of the body minus the given keys.
func (b JSONBody) Without(keys ...string) map[string]any {
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// ParseLimit reads a transactions limit: a positive finite number, floored.
// An absent value gives the default.
func ParseLimit(r *http.Request) (int, error) {
	if !r.URL.Query().Has("limit") {
		return defaultTransactions, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("limit")), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, errLimitInvalid
	}
	if v > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(math.Floor(v)), nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
