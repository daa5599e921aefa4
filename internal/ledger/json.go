package ledger

import "encoding/json"

// jsonEntry is the embedder-facing wire shape (spec.md §6 "in-process API
// for embedders"). Optional fields are omitted rather than rendered as
// zero values so a consumer can tell "false" from "absent".
type jsonEntry struct {
	EntryID         int64  `json:"entry_id"`
	SpeakerID       int64  `json:"speaker_id"`
	Operation       string `json:"operation"`
	Action          string `json:"action"`
	Condition       string `json:"condition,omitempty"`
	ConditionResult *bool  `json:"condition_result,omitempty"`
	Status          string `json:"status"`
	StateBefore     string `json:"state_before,omitempty"`
	StateAfter      string `json:"state_after,omitempty"`
	Timestamp       int64  `json:"timestamp"`
	PrevHash        string `json:"prev_hash"`
	EntryHash       string `json:"entry_hash"`
	BreakReason     string `json:"break_reason,omitempty"`
}

// MarshalJSON implements json.Marshaler for embedder consumption.
func (e Entry) MarshalJSON() ([]byte, error) {
	je := jsonEntry{
		EntryID:     e.EntryID,
		SpeakerID:   e.SpeakerID,
		Operation:   string(e.Operation),
		Action:      e.Action,
		Status:      string(e.Status),
		StateBefore: e.StateBefore,
		StateAfter:  e.StateAfter,
		Timestamp:   e.Timestamp,
		PrevHash:    e.PrevHash,
		EntryHash:   e.EntryHash,
		BreakReason: e.BreakReason,
	}
	if e.HasCondition {
		je.Condition = e.Condition
	}
	if e.HasConditionRes {
		r := e.ConditionResult
		je.ConditionResult = &r
	}
	return json.Marshal(je)
}
