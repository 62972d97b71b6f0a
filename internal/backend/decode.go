package backend

// decode.go normalizes the backend's response shapes at the boundary.
//
// Observed list shapes:
//
//	[ ... ]
//	{"data": [ ... ]}
//	{"data": {"data": [ ... ]}}
//
// Batch-create responses come bare or under the same "data" envelopes, with
// failures keyed by "originalIndex" or "index", or only by the record's
// identifier field. The message may be "error", "message" or "reason".

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/acadimport/internal/core"
)

// maxEnvelopeDepth bounds how many "data" wrappers are peeled.
const maxEnvelopeDepth = 3

var (
	errEmptyBody = errors.New("empty response body")
	errNoResults = errors.New("response reports no created or failed records")
)

// unwrapData peels "data" envelopes. stop reports whether an object already
// holds the payload and must not be unwrapped further.
func unwrapData(raw json.RawMessage, stop func(map[string]json.RawMessage) bool) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errEmptyBody
	}
	for i := 0; i < maxEnvelopeDepth; i++ {
		if raw[0] != '{' {
			return raw, nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		if stop != nil && stop(obj) {
			return raw, nil
		}
		inner, ok := obj["data"]
		if !ok {
			return raw, nil
		}
		raw = bytes.TrimSpace(inner)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return nil, errEmptyBody
		}
	}
	return raw, nil
}

// decodeList decodes a list payload in any supported envelope.
func decodeList(body []byte) ([]map[string]any, error) {
	raw, err := unwrapData(body, nil)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected a list: %w", err)
	}
	return items, nil
}

// batchWire is the canonical batch-create response.
type batchWire struct {
	CreatedCount *int             `json:"createdCount"`
	FailedCount  *int             `json:"failedCount"`
	Created      []map[string]any `json:"created"`
	Failed       []map[string]any `json:"failed"`
}

func isBatchPayload(obj map[string]json.RawMessage) bool {
	for _, k := range []string{"createdCount", "failedCount", "created", "failed"} {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// decodeBatchResponse converts a 2xx body into the canonical response.
// identifierField names the record key failures may be reported under.
func decodeBatchResponse(body []byte, identifierField string) (*core.BatchResponse, error) {
	raw, err := unwrapData(body, isBatchPayload)
	if err != nil {
		return nil, err
	}

	var wire batchWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	if wire.CreatedCount == nil && wire.FailedCount == nil && wire.Created == nil && wire.Failed == nil {
		return nil, errNoResults
	}

	resp := &core.BatchResponse{
		Created: wire.Created,
		Failed:  make([]core.FailedItem, 0, len(wire.Failed)),
	}
	for _, f := range wire.Failed {
		resp.Failed = append(resp.Failed, decodeFailure(f, identifierField))
	}

	resp.CreatedCount = len(wire.Created)
	resp.CreatedReported = wire.Created != nil || wire.CreatedCount != nil
	if wire.CreatedCount != nil {
		resp.CreatedCount = *wire.CreatedCount
	}
	resp.FailedCount = len(wire.Failed)
	resp.FailedReported = wire.Failed != nil || wire.FailedCount != nil
	if wire.FailedCount != nil {
		resp.FailedCount = *wire.FailedCount
	}
	return resp, nil
}

func decodeFailure(item map[string]any, identifierField string) core.FailedItem {
	var out core.FailedItem

	for _, key := range []string{"originalIndex", "index"} {
		if i, ok := asInt(item[key]); ok {
			out.Index = &i
			break
		}
	}

	keys := []string{"identifier"}
	if identifierField != "" {
		keys = append([]string{identifierField}, keys...)
	}
	if rec, ok := item["record"].(map[string]any); ok && identifierField != "" {
		out.Identifier = asString(rec[identifierField])
	}
	for _, key := range keys {
		if out.Identifier != "" {
			break
		}
		out.Identifier = asString(item[key])
	}

	for _, key := range []string{"error", "message", "reason"} {
		if msg := messageOf(item[key]); msg != "" {
			out.Error = msg
			break
		}
	}
	return out
}

// messageOf reads a message that may be a string, a list of strings or an
// object with its own "message".
func messageOf(v any) string {
	switch m := v.(type) {
	case string:
		return strings.TrimSpace(m)
	case []any:
		parts := make([]string, 0, len(m))
		for _, p := range m {
			if s := messageOf(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		return messageOf(m["message"])
	default:
		return ""
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// errorMessage extracts a human message from an error body, falling back to
// the raw text.
func errorMessage(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if msg := messageOf(obj[key]); msg != "" {
				return msg
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
