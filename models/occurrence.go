package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OccurrenceCategory classifies an occurrence
type OccurrenceCategory string

// Occurrence categories as stored in the occurrences collection
const (
	CategoryEnvironmentalInspection OccurrenceCategory = "vistoria_ambiental"
	CategoryVegetationRisk          OccurrenceCategory = "risco_vegetacao"
	CategoryVegetationFire          OccurrenceCategory = "incendio_vegetacao"
	CategoryOther                   OccurrenceCategory = "outras"
)

// OccurrenceStatus is the lifecycle state of an occurrence
type OccurrenceStatus string

// Occurrence statuses as stored in the occurrences collection
const (
	StatusOpen       OccurrenceStatus = "aberta"
	StatusInProgress OccurrenceStatus = "andamento"
	StatusClosed     OccurrenceStatus = "fechada"
)

// OriginType tells how the occurrence reached civil defense
type OriginType string

// Known origins
const (
	OriginProcess        OriginType = "Processo"
	OriginEmailWhatsApp  OriginType = "E-mail/WhatsApp"
	OriginPhone          OriginType = "Via Fone"
	OriginOfficialLetter OriginType = "Via Ofício"
	OriginFireDepartment OriginType = "Corpo de Bombeiros"
)

// TeamActionType is an action taken by the civil defense team on site
type TeamActionType string

// Known team actions
const (
	TeamActionIsolation       TeamActionType = "Isolamento/Sinalização"
	TeamActionNotification    TeamActionType = "Notificação"
	TeamActionTechnicalReport TeamActionType = "Elaborar Parecer Técnico"
	TeamActionEvacuation      TeamActionType = "Evacuação"
	TeamActionInterdiction    TeamActionType = "Interdição"
	TeamActionAssessment      TeamActionType = "Avaliação"
	TeamActionReopening       TeamActionType = "Desinterdição"
	TeamActionLogistics       TeamActionType = "Apoio Logístico"
)

// OrganismType is an external organism activated for an occurrence
type OrganismType string

// Known organisms
const (
	OrganismFireDepartment      OrganismType = "Bombeiros"
	OrganismSAAE                OrganismType = "SAAE"
	OrganismEnvironmentalPolice OrganismType = "Polícia Ambiental"
	OrganismCPFL                OrganismType = "CPFL"
	OrganismCetesb              OrganismType = "Cetesb"
	OrganismMunicipalGuard      OrganismType = "Guarda Municipal"
	OrganismTraffic             OrganismType = "Trânsito"
	OrganismSocialAction        OrganismType = "Ação Social"
)

// Location holds where an occurrence happened
type Location struct {
	Latitude     *float64 `json:"latitude,omitempty" bson:"latitude,omitempty" validate:"omitempty,lat"`
	Longitude    *float64 `json:"longitude,omitempty" bson:"longitude,omitempty" validate:"omitempty,lng"`
	Altitude     *float64 `json:"altitude,omitempty" bson:"altitude,omitempty"`
	Address      string   `json:"address" bson:"address" validate:"required"`
	Number       string   `json:"number,omitempty" bson:"number,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty" bson:"neighborhood,omitempty"`
	Reference    string   `json:"reference,omitempty" bson:"reference,omitempty"`
}

// Action pairs a team action with the organism activated for it
type Action struct {
	TeamAction        TeamActionType `json:"teamAction,omitempty" bson:"teamAction,omitempty" validate:"omitempty,teamaction"`
	ActivatedOrganism OrganismType   `json:"activatedOrganism,omitempty" bson:"activatedOrganism,omitempty" validate:"omitempty,organism"`
}

// Resource is a vehicle and the materials it carried
type Resource struct {
	Vehicle   string `json:"vehicle,omitempty" bson:"vehicle,omitempty"`
	Materials string `json:"materials,omitempty" bson:"materials,omitempty"`
}

// Occurrence is the wire representation of an occurrence returned by the api
type Occurrence struct {
	ID                string             `json:"id"`
	SSPDSNumber       string             `json:"sspdsNumber,omitempty"`
	RANumber          string             `json:"raNumber"`
	StartDateTime     time.Time          `json:"startDateTime"`
	EndDateTime       *time.Time         `json:"endDateTime"`
	Origins           []OriginType       `json:"origins,omitempty"`
	CobradeCode       string             `json:"cobradeCode,omitempty"`
	IsConfidential    *bool              `json:"isConfidential,omitempty"`
	Category          OccurrenceCategory `json:"category"`
	Subcategory       string             `json:"subcategory,omitempty"`
	Description       string             `json:"description"`
	AreaType          string             `json:"areaType,omitempty"`
	AffectedArea      string             `json:"affectedArea,omitempty"`
	Temperature       string             `json:"temperature,omitempty"`
	Humidity          string             `json:"humidity,omitempty"`
	HasWaterBody      *bool              `json:"hasWaterBody,omitempty"`
	ImpactType        string             `json:"impactType,omitempty"`
	ImpactMagnitude   string             `json:"impactMagnitude,omitempty"`
	RequesterName     string             `json:"requesterName"`
	Institution       string             `json:"institution,omitempty"`
	Phone             string             `json:"phone,omitempty"`
	Location          *Location          `json:"location"`
	Actions           []Action           `json:"actions"`
	Resources         []Resource         `json:"resources"`
	DetailedReport    string             `json:"detailedReport,omitempty"`
	Observations      string             `json:"observations,omitempty"`
	ResponsibleAgents string             `json:"responsibleAgents,omitempty"`
	Status            OccurrenceStatus   `json:"status"`
	CreatedBy         *string            `json:"createdBy"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// OccurrenceDocument holds the structure for the occurrences collection in mongo.
// Temporal fields are kept as interface{} because older documents may carry them
// as ISO strings or bson timestamps instead of bson dates.
type OccurrenceDocument struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	SSPDSNumber       string             `bson:"sspdsNumber,omitempty"`
	RANumber          string             `bson:"raNumber"`
	StartDateTime     interface{}        `bson:"startDateTime"`
	EndDateTime       interface{}        `bson:"endDateTime"`
	Origins           []OriginType       `bson:"origins,omitempty"`
	CobradeCode       string             `bson:"cobradeCode,omitempty"`
	IsConfidential    *bool              `bson:"isConfidential,omitempty"`
	Category          OccurrenceCategory `bson:"category"`
	Subcategory       string             `bson:"subcategory,omitempty"`
	Description       string             `bson:"description"`
	AreaType          string             `bson:"areaType,omitempty"`
	AffectedArea      string             `bson:"affectedArea,omitempty"`
	Temperature       string             `bson:"temperature,omitempty"`
	Humidity          string             `bson:"humidity,omitempty"`
	HasWaterBody      *bool              `bson:"hasWaterBody,omitempty"`
	ImpactType        string             `bson:"impactType,omitempty"`
	ImpactMagnitude   string             `bson:"impactMagnitude,omitempty"`
	RequesterName     string             `bson:"requesterName"`
	Institution       string             `bson:"institution,omitempty"`
	Phone             string             `bson:"phone,omitempty"`
	Location          *Location          `bson:"location"`
	Actions           []Action           `bson:"actions"`
	Resources         []Resource         `bson:"resources"`
	DetailedReport    string             `bson:"detailedReport,omitempty"`
	Observations      string             `bson:"observations,omitempty"`
	ResponsibleAgents string             `bson:"responsibleAgents,omitempty"`
	Status            OccurrenceStatus   `bson:"status"`
	CreatedBy         *string            `bson:"createdBy"`
	CreatedAt         interface{}        `bson:"createdAt"`
	UpdatedAt         interface{}        `bson:"updatedAt"`
}

// CreateOccurrenceRequest is the body accepted when creating an occurrence
type CreateOccurrenceRequest struct {
	SSPDSNumber       string             `json:"sspdsNumber,omitempty"`
	StartDateTime     string             `json:"startDateTime" validate:"required,datetime_iso"`
	EndDateTime       string             `json:"endDateTime,omitempty" validate:"omitempty,datetime_iso"`
	Origins           []OriginType       `json:"origins,omitempty" validate:"omitempty,dive,origin"`
	CobradeCode       string             `json:"cobradeCode,omitempty"`
	IsConfidential    *bool              `json:"isConfidential,omitempty"`
	Category          OccurrenceCategory `json:"category" validate:"required,category"`
	Subcategory       string             `json:"subcategory,omitempty"`
	Description       string             `json:"description" validate:"required"`
	AreaType          string             `json:"areaType,omitempty"`
	AffectedArea      string             `json:"affectedArea,omitempty"`
	Temperature       string             `json:"temperature,omitempty"`
	Humidity          string             `json:"humidity,omitempty"`
	HasWaterBody      *bool              `json:"hasWaterBody,omitempty"`
	ImpactType        string             `json:"impactType,omitempty"`
	ImpactMagnitude   string             `json:"impactMagnitude,omitempty"`
	RequesterName     string             `json:"requesterName" validate:"required"`
	Institution       string             `json:"institution,omitempty"`
	Phone             string             `json:"phone,omitempty"`
	Location          *Location          `json:"location" validate:"required"`
	Actions           []Action           `json:"actions,omitempty" validate:"omitempty,dive"`
	Resources         []Resource         `json:"resources,omitempty" validate:"omitempty,dive"`
	DetailedReport    string             `json:"detailedReport,omitempty"`
	Observations      string             `json:"observations,omitempty"`
	ResponsibleAgents string             `json:"responsibleAgents,omitempty"`
	Status            OccurrenceStatus   `json:"status,omitempty" validate:"omitempty,status"`
}

// UpdateOccurrenceRequest is a partial patch, only non-nil fields are written
type UpdateOccurrenceRequest struct {
	SSPDSNumber       *string             `json:"sspdsNumber,omitempty"`
	StartDateTime     *string             `json:"startDateTime,omitempty" validate:"omitempty,datetime_iso"`
	EndDateTime       *string             `json:"endDateTime,omitempty" validate:"omitempty,datetime_iso"`
	Origins           *[]OriginType       `json:"origins,omitempty" validate:"omitempty,dive,origin"`
	CobradeCode       *string             `json:"cobradeCode,omitempty"`
	IsConfidential    *bool               `json:"isConfidential,omitempty"`
	Category          *OccurrenceCategory `json:"category,omitempty" validate:"omitempty,category"`
	Subcategory       *string             `json:"subcategory,omitempty"`
	Description       *string             `json:"description,omitempty" validate:"omitempty,min=1"`
	AreaType          *string             `json:"areaType,omitempty"`
	AffectedArea      *string             `json:"affectedArea,omitempty"`
	Temperature       *string             `json:"temperature,omitempty"`
	Humidity          *string             `json:"humidity,omitempty"`
	HasWaterBody      *bool               `json:"hasWaterBody,omitempty"`
	ImpactType        *string             `json:"impactType,omitempty"`
	ImpactMagnitude   *string             `json:"impactMagnitude,omitempty"`
	RequesterName     *string             `json:"requesterName,omitempty" validate:"omitempty,min=1"`
	Institution       *string             `json:"institution,omitempty"`
	Phone             *string             `json:"phone,omitempty"`
	Location          *Location           `json:"location,omitempty"`
	Actions           *[]Action           `json:"actions,omitempty" validate:"omitempty,dive"`
	Resources         *[]Resource         `json:"resources,omitempty" validate:"omitempty,dive"`
	DetailedReport    *string             `json:"detailedReport,omitempty"`
	Observations      *string             `json:"observations,omitempty"`
	ResponsibleAgents *string             `json:"responsibleAgents,omitempty"`
	Status            *OccurrenceStatus   `json:"status,omitempty" validate:"omitempty,status"`
}

// OccurrenceFilter holds the listing filters, zero values mean "not set"
type OccurrenceFilter struct {
	Category      OccurrenceCategory `json:"category,omitempty" validate:"omitempty,category"`
	Status        OccurrenceStatus   `json:"status,omitempty" validate:"omitempty,status"`
	Search        string             `json:"search,omitempty"`
	StartDate     string             `json:"startDate,omitempty"`
	EndDate       string             `json:"endDate,omitempty"`
	RequesterName string             `json:"requesterName,omitempty"`
	Page          int                `json:"page,omitempty" validate:"omitempty,min=1"`
	Limit         int                `json:"limit,omitempty" validate:"omitempty,min=1"`
}

// PaginatedOccurrences is the listing response
type PaginatedOccurrences struct {
	Data       []Occurrence `json:"data"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"totalPages"`
}

// MessageResponse is the confirmation payload returned by deletes
type MessageResponse struct {
	Message string `json:"message"`
}
