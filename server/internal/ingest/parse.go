package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/obsidianstack/insightchannel/server/internal/store"
)

var errEmptyBatch = errors.New("batch contains no envelopes")

// splitBatch returns the raw envelopes in body, which is either a JSON array
// or newline-delimited JSON.
func splitBatch(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyBatch
	}

	var items []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("malformed batch array: %w", err)
		}
	} else {
		for _, line := range bytes.Split(trimmed, []byte{'\n'}) {
			line = bytes.TrimSpace(line)
			if len(line) > 0 {
				items = append(items, json.RawMessage(line))
			}
		}
	}
	if len(items) == 0 {
		return nil, errEmptyBatch
	}
	return items, nil
}

type envelopeHeader struct {
	Name string `json:"name"`
	Time string `json:"time"`
	IKey string `json:"iKey"`
	Data struct {
		BaseType string `json:"baseType"`
	} `json:"data"`
}

// validateEnvelope decodes the fields the collector requires and returns the
// store entry for raw.
func validateEnvelope(raw json.RawMessage) (*store.Entry, error) {
	var h envelopeHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	switch {
	case h.Name == "":
		return nil, errors.New("name is required")
	case h.IKey == "":
		return nil, errors.New("iKey is required")
	case h.Data.BaseType == "":
		return nil, errors.New("data.baseType is required")
	case h.Time == "":
		return nil, errors.New("time is required")
	}
	ts, err := time.Parse(time.RFC3339Nano, h.Time)
	if err != nil {
		return nil, fmt.Errorf("time %q is not RFC 3339", h.Time)
	}
	return &store.Entry{
		IKey:     h.IKey,
		Name:     h.Name,
		Time:     ts,
		BaseType: h.Data.BaseType,
		Raw:      append(json.RawMessage(nil), raw...),
	}, nil
}
