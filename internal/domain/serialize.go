package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Values of the message_type header on the sink topic.
const (
	MessageTypeRecord  = "record"
	MessageTypeSummary = "summary"
)

// SerializeLabeledRecord marshals a labeled record into an OutputEvent keyed by record ID.
func SerializeLabeledRecord(rec LabeledRecord) (OutputEvent, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize labeled record: %w", err)
	}
	return OutputEvent{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: map[string]string{
			"message_type": MessageTypeRecord,
			"run_id":       rec.RunID,
			"processed_at": rec.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

// SerializeSummary marshals a detection result without its per-record rows.
// Rows travel as individual record messages.
func SerializeSummary(result DetectionResult) (OutputEvent, error) {
	result.Records = nil
	result.Labeling.Labels = nil
	data, err := json.Marshal(result)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize detection summary: %w", err)
	}
	return OutputEvent{
		Key:   []byte(result.RunID),
		Value: data,
		Headers: map[string]string{
			"message_type": MessageTypeSummary,
			"run_id":       result.RunID,
			"algorithm":    result.Algorithm,
			"processed_at": result.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
