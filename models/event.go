package models

// Occurrence event names broadcast to websocket clients
const (
	EventOccurrenceCreated = "occurrence.created"
	EventOccurrenceUpdated = "occurrence.updated"
	EventOccurrenceRemoved = "occurrence.removed"
)

// OccurrenceEvent is pushed to every connected dashboard when an occurrence changes
type OccurrenceEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
