package handler

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// jsonNumber значение поля, только если это JSON-число; строки, bool и null дают nil
func jsonNumber(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return nil
	}
	return &v
}

// jsonObject metadata хранится как есть; null и пустое тело означают отсутствие
func jsonObject(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}

func isJSONArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
