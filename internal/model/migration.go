package model

import "github.com/google/uuid"

// MigrationFailure is one exam/tariff pair that could not be migrated.
type MigrationFailure struct {
	ExamID   uuid.UUID `json:"exam_id"`
	ExamName string    `json:"exam_name"`
	Tariff   string    `json:"tariff"`
	Error    string    `json:"error"`
}

// MigrationReport summarises a legacy price migration run. The run is not
// atomic; a failed or interrupted run is repaired by running it again.
type MigrationReport struct {
	DryRun     bool               `json:"dry_run"`
	Total      int                `json:"total"`
	Processed  int                `json:"processed"`
	Created    int                `json:"created"`
	Skipped    int                `json:"skipped"`
	Failed     int                `json:"failed"`
	Failures   []MigrationFailure `json:"failures,omitempty"`
	References []string           `json:"references_bound,omitempty"`
	Log        []string           `json:"log"`
}
