package models

// DuplicateRANumber is a registration number held by more than one occurrence
type DuplicateRANumber struct {
	RANumber      string   `json:"raNumber"`
	OccurrenceIDs []string `json:"occurrenceIds"`
}
