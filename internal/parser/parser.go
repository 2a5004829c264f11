// Package parser decodes raw feed payloads into stat records. Pure, no I/O.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
)

// feedEnvelope is the wire shape of one feed payload: a header identifying
// the league and date plus one entry per entity and stat group.
type feedEnvelope struct {
	League  string      `json:"league"`
	Date    string      `json:"date"`
	Entries []feedEntry `json:"entries"`
}

type feedEntry struct {
	EntityID  string          `json:"entity_id"`
	StatGroup string          `json:"stat_group"`
	Line      json.RawMessage `json:"line"`
}

// FeedParser implements core.Parser for the JSON feed envelope.
type FeedParser struct{}

var _ core.Parser = (*FeedParser)(nil)

// NewFeedParser constructs a FeedParser.
func NewFeedParser() *FeedParser { return &FeedParser{} }

// Parse decodes payload into records. A nil or empty payload is a valid
// empty day and yields no records and no error; a payload that decodes but
// violates the envelope contract is a parse failure.
func (p *FeedParser) Parse(payload []byte) ([]model.StatRecord, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var envelope feedEnvelope
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode feed envelope: %w", err)
	}

	if envelope.League == "" {
		return nil, fmt.Errorf("feed envelope missing league")
	}
	statDate, err := model.ParseDateUnit(envelope.Date)
	if err != nil {
		return nil, fmt.Errorf("feed envelope date: %w", err)
	}
	if len(envelope.Entries) == 0 {
		return nil, nil
	}

	records := make([]model.StatRecord, 0, len(envelope.Entries))
	for i, entry := range envelope.Entries {
		record := model.StatRecord{
			League:    envelope.League,
			StatDate:  statDate,
			EntityID:  entry.EntityID,
			StatGroup: entry.StatGroup,
			Payload:   entry.Line,
		}
		if len(record.Payload) == 0 {
			record.Payload = json.RawMessage("{}")
		}
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}
