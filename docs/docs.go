// Package docs Civil Defense Occurrence API.
//
// Documentation of the Civil Defense Occurrence API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - bearer
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/civil-defense-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route POST /api/v1/auth/login auth login
// Exchanges basic credentials for a bearer token.
// security:
//   basic:
// responses:
//   200: loginResponse
//   401: errorResponse
//   429: errorResponse

// swagger:response loginResponse
type loginResponseWrapper struct {
	// in:body
	Body models.LoginResponse
}

// swagger:route POST /api/v1/occurrences occurrences createOccurrence
// Registers an occurrence and assigns its registration number.
// responses:
//   201: occurrenceResponse
//   400: errorResponse

// swagger:parameters createOccurrence
type createOccurrenceParams struct {
	// in:body
	Body models.CreateOccurrenceRequest
}

// swagger:route GET /api/v1/occurrences occurrences listOccurrences
// Lists occurrences, newest first, filtered and paginated.
// responses:
//   200: occurrencesResponse
//   400: errorResponse

// swagger:parameters listOccurrences
type listOccurrencesParams struct {
	// in:query
	Category string `json:"category"`
	// in:query
	Status string `json:"status"`
	// Case-insensitive match on description, registration number, requester name or address.
	// in:query
	Search string `json:"search"`
	// in:query
	StartDate string `json:"startDate"`
	// in:query
	EndDate string `json:"endDate"`
	// in:query
	RequesterName string `json:"requesterName"`
	// in:query
	Page int `json:"page"`
	// in:query
	Limit int `json:"limit"`
}

// swagger:response occurrencesResponse
type occurrencesResponseWrapper struct {
	// in:body
	Body models.PaginatedOccurrences
}

// swagger:route GET /api/v1/occurrences/{occurrence_id} occurrences occurrenceByID
// Gets a single occurrence by ID.
// responses:
//   200: occurrenceResponse
//   404: errorResponse

// swagger:route GET /api/v1/occurrences/ra/{ra_number} occurrences occurrenceByRANumber
// Gets a single occurrence by registration number.
// responses:
//   200: occurrenceResponse
//   404: errorResponse

// swagger:route PATCH /api/v1/occurrences/{occurrence_id} occurrences updateOccurrence
// Writes the supplied fields of an occurrence.
// responses:
//   200: occurrenceResponse
//   400: errorResponse
//   404: errorResponse

// swagger:parameters updateOccurrence
type updateOccurrenceParams struct {
	// in:body
	Body models.UpdateOccurrenceRequest
}

// swagger:route DELETE /api/v1/occurrences/{occurrence_id} occurrences deleteOccurrence
// Permanently removes an occurrence.
// responses:
//   200: messageResponse
//   404: errorResponse

// swagger:response occurrenceResponse
type occurrenceResponseWrapper struct {
	// in:body
	Body models.Occurrence
}

// swagger:response messageResponse
type messageResponseWrapper struct {
	// in:body
	Body models.MessageResponse
}

// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}
