package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/civil-defense-api/api"
	"github.com/linesmerrill/civil-defense-api/config"
	"github.com/linesmerrill/civil-defense-api/mailer"
	"github.com/linesmerrill/civil-defense-api/models"
	"github.com/linesmerrill/civil-defense-api/occurrences"
)

const alertTimeout = 30 * time.Second

// Occurrence exported for testing purposes
type Occurrence struct {
	Service         *occurrences.Service
	Hub             *Hub
	Mailer          mailer.Mailer
	AlertRecipients []string
	BaseURL         string
}

// CreateOccurrenceHandler registers a new occurrence for the authenticated user
func (o Occurrence) CreateOccurrenceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOccurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid occurrence", http.StatusBadRequest, w, err)
		return
	}

	var actor *string
	if id := actorID(r); id != "" {
		actor = &id
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	created, err := o.Service.Create(ctx, req, actor)
	if err != nil {
		occurrenceError("failed to create occurrence", w, err)
		return
	}

	o.broadcast(models.EventOccurrenceCreated, created)
	o.alert(*created)
	writeJSON(w, http.StatusCreated, created)
}

// OccurrencesHandler lists occurrences, see occurrenceFilter for the query parameters
func (o Occurrence) OccurrencesHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := occurrenceFilter(r)
	if err != nil {
		config.ErrorStatus("invalid query parameters", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	page, err := o.Service.FindAll(ctx, filter)
	if err != nil {
		occurrenceError("failed to list occurrences", w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// OccurrenceHandler returns an occurrence given its id
func (o Occurrence) OccurrenceHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["occurrence_id"]
	zap.S().Debugf("occurrence_id: %v", id)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	found, err := o.Service.FindOne(ctx, id)
	if err != nil {
		occurrenceError("failed to get occurrence by id", w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// OccurrenceByRANumberHandler returns an occurrence given its registration number
func (o Occurrence) OccurrenceByRANumberHandler(w http.ResponseWriter, r *http.Request) {
	raNumber := mux.Vars(r)["ra_number"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	found, err := o.Service.FindByRANumber(ctx, raNumber)
	if err != nil {
		occurrenceError("failed to get occurrence by registration number", w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// UpdateOccurrenceHandler writes the fields present in the body and leaves the rest alone
func (o Occurrence) UpdateOccurrenceHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["occurrence_id"]

	var patch models.UpdateOccurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(patch); err != nil {
		config.ErrorStatus("invalid occurrence", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := o.Service.Update(ctx, id, patch)
	if err != nil {
		occurrenceError("failed to update occurrence", w, err)
		return
	}

	o.broadcast(models.EventOccurrenceUpdated, updated)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteOccurrenceHandler permanently removes an occurrence
func (o Occurrence) DeleteOccurrenceHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["occurrence_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	msg, err := o.Service.Remove(ctx, id)
	if err != nil {
		occurrenceError("failed to delete occurrence", w, err)
		return
	}

	o.broadcast(models.EventOccurrenceRemoved, map[string]string{"id": id})
	writeJSON(w, http.StatusOK, msg)
}

func (o Occurrence) broadcast(event string, data interface{}) {
	if o.Hub != nil {
		o.Hub.Broadcast(event, data)
	}
}

// alert mails vegetation fires in the background, the request does not wait for sendgrid
func (o Occurrence) alert(created models.Occurrence) {
	if o.Mailer == nil || created.Category != models.CategoryVegetationFire {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := mailer.OccurrenceAlert(ctx, o.Mailer, o.AlertRecipients, o.BaseURL, created); err != nil {
			zap.S().Errorw("failed to send occurrence alert", "raNumber", created.RANumber, "error", err)
		}
	}()
}

// occurrenceFilter reads category, status, search, startDate, endDate,
// requesterName, page and limit from the query string
func occurrenceFilter(r *http.Request) (models.OccurrenceFilter, error) {
	q := r.URL.Query()
	f := models.OccurrenceFilter{
		Category:      models.OccurrenceCategory(q.Get("category")),
		Status:        models.OccurrenceStatus(q.Get("status")),
		Search:        q.Get("search"),
		StartDate:     q.Get("startDate"),
		EndDate:       q.Get("endDate"),
		RequesterName: q.Get("requesterName"),
	}

	var err error
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			return f, err
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, err
		}
	}
	return f, validate.Struct(f)
}

// occurrenceError maps the service errors onto http statuses
func occurrenceError(message string, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, occurrences.ErrNotFound):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	case errors.Is(err, occurrences.ErrInvalidInput):
		config.ErrorStatus(message, http.StatusBadRequest, w, err)
	case mongo.IsDuplicateKeyError(err):
		config.ErrorStatus(message, http.StatusConflict, w, err)
	case errors.Is(err, context.DeadlineExceeded):
		config.ErrorStatus(message, http.StatusGatewayTimeout, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}

func actorID(r *http.Request) string {
	actor, _ := api.ActorFromContext(r.Context())
	return actor.ID
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
