package models

// Counter holds the structure for the counters collection in mongo
type Counter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}
