package model

import (
	"encoding/json"
	"errors"
)

// StatRecord is one parsed stat line, keyed by the natural composite key
// (league, stat date, entity, stat group). The store enforces the key as
// unique so re-collecting a date overwrites instead of duplicating.
type StatRecord struct {
	League    string          `json:"league"`
	StatDate  DateUnit        `json:"stat_date"`
	EntityID  string          `json:"entity_id"`
	StatGroup string          `json:"stat_group"`
	Payload   json.RawMessage `json:"payload"`
}

// Validate checks the natural key fields.
func (r *StatRecord) Validate() error {
	if r.League == "" {
		return errors.New("stat record requires a league")
	}
	if r.StatDate.IsZero() {
		return errors.New("stat record requires a stat date")
	}
	if r.EntityID == "" {
		return errors.New("stat record requires an entity id")
	}
	if r.StatGroup == "" {
		return errors.New("stat record requires a stat group")
	}
	return nil
}
