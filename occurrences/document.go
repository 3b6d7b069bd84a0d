package occurrences

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/civil-defense-api/models"
)

// accepted date layouts, most specific first
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDateTime parses an ISO 8601 date or date-time. Values without a zone
// are read as UTC.
func ParseDateTime(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q is not ISO 8601: %w", value, ErrInvalidInput)
}

// toStoreDocument builds the document persisted for a new occurrence. The
// registration number is stamped by the caller.
func toStoreDocument(req models.CreateOccurrenceRequest, actorID *string, now time.Time) (models.OccurrenceDocument, error) {
	start, err := ParseDateTime(req.StartDateTime)
	if err != nil {
		return models.OccurrenceDocument{}, wrap("startDateTime", err)
	}
	var end interface{}
	if req.EndDateTime != "" {
		t, err := ParseDateTime(req.EndDateTime)
		if err != nil {
			return models.OccurrenceDocument{}, wrap("endDateTime", err)
		}
		end = t
	}

	status := req.Status
	if status == "" {
		status = models.StatusOpen
	}
	actions := req.Actions
	if actions == nil {
		actions = []models.Action{}
	}
	resources := req.Resources
	if resources == nil {
		resources = []models.Resource{}
	}

	return models.OccurrenceDocument{
		SSPDSNumber:       req.SSPDSNumber,
		StartDateTime:     start,
		EndDateTime:       end,
		Origins:           req.Origins,
		CobradeCode:       req.CobradeCode,
		IsConfidential:    req.IsConfidential,
		Category:          req.Category,
		Subcategory:       req.Subcategory,
		Description:       req.Description,
		AreaType:          req.AreaType,
		AffectedArea:      req.AffectedArea,
		Temperature:       req.Temperature,
		Humidity:          req.Humidity,
		HasWaterBody:      req.HasWaterBody,
		ImpactType:        req.ImpactType,
		ImpactMagnitude:   req.ImpactMagnitude,
		RequesterName:     req.RequesterName,
		Institution:       req.Institution,
		Phone:             req.Phone,
		Location:          req.Location,
		Actions:           actions,
		Resources:         resources,
		DetailedReport:    req.DetailedReport,
		Observations:      req.Observations,
		ResponsibleAgents: req.ResponsibleAgents,
		Status:            status,
		CreatedBy:         actorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// fromStoreDocument converts a stored document to its wire form. Temporal
// fields may come back as any representation instant understands.
func fromStoreDocument(doc models.OccurrenceDocument) models.Occurrence {
	var end *time.Time
	if doc.EndDateTime != nil {
		t := instant(doc.EndDateTime)
		end = &t
	}
	actions := doc.Actions
	if actions == nil {
		actions = []models.Action{}
	}
	resources := doc.Resources
	if resources == nil {
		resources = []models.Resource{}
	}

	return models.Occurrence{
		ID:                doc.ID.Hex(),
		SSPDSNumber:       doc.SSPDSNumber,
		RANumber:          doc.RANumber,
		StartDateTime:     instant(doc.StartDateTime),
		EndDateTime:       end,
		Origins:           doc.Origins,
		CobradeCode:       doc.CobradeCode,
		IsConfidential:    doc.IsConfidential,
		Category:          doc.Category,
		Subcategory:       doc.Subcategory,
		Description:       doc.Description,
		AreaType:          doc.AreaType,
		AffectedArea:      doc.AffectedArea,
		Temperature:       doc.Temperature,
		Humidity:          doc.Humidity,
		HasWaterBody:      doc.HasWaterBody,
		ImpactType:        doc.ImpactType,
		ImpactMagnitude:   doc.ImpactMagnitude,
		RequesterName:     doc.RequesterName,
		Institution:       doc.Institution,
		Phone:             doc.Phone,
		Location:          doc.Location,
		Actions:           actions,
		Resources:         resources,
		DetailedReport:    doc.DetailedReport,
		Observations:      doc.Observations,
		ResponsibleAgents: doc.ResponsibleAgents,
		Status:            doc.Status,
		CreatedBy:         doc.CreatedBy,
		CreatedAt:         instant(doc.CreatedAt),
		UpdatedAt:         instant(doc.UpdatedAt),
	}
}

// instant resolves the temporal representations found in the occurrences
// collection to a comparable time. Unknown or unparseable values resolve to
// the zero time.
func instant(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case string:
		if parsed, err := ParseDateTime(t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// buildPatch returns the $set document for a partial update. Only supplied
// fields are written, updatedAt is always refreshed. Empty date strings are
// treated as not supplied.
func buildPatch(patch models.UpdateOccurrenceRequest, now time.Time) (bson.M, error) {
	set := bson.M{"updatedAt": now}

	if patch.StartDateTime != nil && *patch.StartDateTime != "" {
		t, err := ParseDateTime(*patch.StartDateTime)
		if err != nil {
			return nil, wrap("startDateTime", err)
		}
		set["startDateTime"] = t
	}
	if patch.EndDateTime != nil && *patch.EndDateTime != "" {
		t, err := ParseDateTime(*patch.EndDateTime)
		if err != nil {
			return nil, wrap("endDateTime", err)
		}
		set["endDateTime"] = t
	}

	text := map[string]*string{
		"sspdsNumber":       patch.SSPDSNumber,
		"cobradeCode":       patch.CobradeCode,
		"subcategory":       patch.Subcategory,
		"description":       patch.Description,
		"areaType":          patch.AreaType,
		"affectedArea":      patch.AffectedArea,
		"temperature":       patch.Temperature,
		"humidity":          patch.Humidity,
		"impactType":        patch.ImpactType,
		"impactMagnitude":   patch.ImpactMagnitude,
		"requesterName":     patch.RequesterName,
		"institution":       patch.Institution,
		"phone":             patch.Phone,
		"detailedReport":    patch.DetailedReport,
		"observations":      patch.Observations,
		"responsibleAgents": patch.ResponsibleAgents,
	}
	for field, value := range text {
		if value != nil {
			set[field] = *value
		}
	}

	if patch.IsConfidential != nil {
		set["isConfidential"] = *patch.IsConfidential
	}
	if patch.HasWaterBody != nil {
		set["hasWaterBody"] = *patch.HasWaterBody
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Origins != nil {
		set["origins"] = *patch.Origins
	}
	if patch.Location != nil {
		set["location"] = patch.Location
	}
	if patch.Actions != nil {
		actions := *patch.Actions
		if actions == nil {
			actions = []models.Action{}
		}
		set["actions"] = actions
	}
	if patch.Resources != nil {
		resources := *patch.Resources
		if resources == nil {
			resources = []models.Resource{}
		}
		set["resources"] = resources
	}
	return set, nil
}
