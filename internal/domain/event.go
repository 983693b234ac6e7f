package domain

import "time"

// DerivedEvent announces a derived record that was persisted.
type DerivedEvent struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Key       string    `json:"key"`
	Station   string    `json:"station,omitempty"`
	Models    []string  `json:"models"`
	Samples   int       `json:"samples"`
	Replaced  bool      `json:"replaced"`
	DerivedAt time.Time `json:"derived_at"`
}

// BatchProgress reports how far a batch run has come.
type BatchProgress struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}
