package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/civil-defense-api/models"
	"github.com/linesmerrill/civil-defense-api/occurrences"
)

var raPattern = regexp.MustCompile(`^\d{4}-\d{3}$`)

func createOccurrence(t *testing.T, a *App, token string, req models.CreateOccurrenceRequest) models.Occurrence {
	t.Helper()
	rr := executeRequest(a, authed(http.MethodPost, "/api/v1/occurrences", token, req))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var o models.Occurrence
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &o))
	return o
}

func TestOccurrenceLifecycle(t *testing.T) {
	a, user, token := newTestApp(t, testConfig(), nil)

	req := validCreateRequest()
	req.Category = models.CategoryVegetationRisk
	created := createOccurrence(t, a, token, req)

	assert.Equal(t, fmt.Sprintf("%d-001", time.Now().Year()), created.RANumber)
	assert.Equal(t, models.StatusOpen, created.Status)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, user.ID.Hex(), *created.CreatedBy)
	assert.Equal(t, []models.Action{}, created.Actions)
	assert.Equal(t, []models.Resource{}, created.Resources)
	assert.Nil(t, created.EndDateTime)

	rr := executeRequest(a, authed(http.MethodGet, "/api/v1/occurrences/"+created.ID, token, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = executeRequest(a, authed(http.MethodGet, "/api/v1/occurrences/ra/"+created.RANumber, token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var byRA models.Occurrence
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &byRA))
	assert.Equal(t, created.ID, byRA.ID)

	rr = executeRequest(a, authed(http.MethodPatch, "/api/v1/occurrences/"+created.ID, token,
		map[string]string{"status": "fechada", "observations": "Área isolada"}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated models.Occurrence
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, models.StatusClosed, updated.Status)
	assert.Equal(t, "Área isolada", updated.Observations)
	assert.Equal(t, created.RANumber, updated.RANumber)
	assert.Equal(t, created.Description, updated.Description)

	rr = executeRequest(a, authed(http.MethodDelete, "/api/v1/occurrences/"+created.ID, token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message": "`+occurrences.RemovedMessage+`"}`, rr.Body.String())

	rr = executeRequest(a, authed(http.MethodGet, "/api/v1/occurrences/"+created.ID, token, nil))
	checkResponseCode(t, http.StatusNotFound, rr.Code)
	rr = executeRequest(a, authed(http.MethodDelete, "/api/v1/occurrences/"+created.ID, token, nil))
	checkResponseCode(t, http.StatusNotFound, rr.Code)
}

func TestCreateOccurrenceSequentialNumbers(t *testing.T) {
	for _, strategy := range []string{occurrences.StrategyScan, occurrences.StrategyCounter} {
		t.Run(strategy, func(t *testing.T) {
			conf := testConfig()
			conf.RAAllocator = strategy
			a, _, token := newTestApp(t, conf, nil)

			req := validCreateRequest()
			req.Category = models.CategoryOther
			for i := 1; i <= 3; i++ {
				o := createOccurrence(t, a, token, req)
				assert.Regexp(t, raPattern, o.RANumber)
				assert.Equal(t, fmt.Sprintf("%d-%03d", time.Now().Year(), i), o.RANumber)
			}
		})
	}
}

func TestCreateOccurrenceBadRequests(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)

	bad := validCreateRequest()
	bad.Category = "enchente"
	for name, body := range map[string]interface{}{
		"malformed json":   `{"description": `,
		"unknown category": bad,
		"empty body":       `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := executeRequest(a, authed(http.MethodPost, "/api/v1/occurrences", token, body))
			checkResponseCode(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestCreateVegetationFireSendsAlert(t *testing.T) {
	sent := make(chan string, 1)
	m := &mockMailer{}
	m.On("Send", mock.Anything, []string{"ops@example.com"}, mock.AnythingOfType("string"), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent <- args.String(2) }).
		Return(nil)
	a, _, token := newTestApp(t, testConfig(), m)

	created := createOccurrence(t, a, token, validCreateRequest())

	select {
	case subject := <-sent:
		assert.Contains(t, subject, created.RANumber)
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not sent")
	}
}

func TestOccurrencesListing(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)

	for i := 0; i < 15; i++ {
		req := validCreateRequest()
		req.Category = models.CategoryOther
		req.StartDateTime = time.Date(2024, 3, 1+i, 8, 0, 0, 0, time.UTC).Format(time.RFC3339)
		if i%2 == 0 {
			req.RequesterName = "Prefeitura"
		}
		createOccurrence(t, a, token, req)
	}

	rr := executeRequest(a, authed(http.MethodGet, "/api/v1/occurrences", token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var page models.PaginatedOccurrences
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 15, page.Total)
	assert.Len(t, page.Data, 10)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), page.Data[0].StartDateTime.UTC())

	q := url.Values{"page": {"2"}, "limit": {"10"}, "requesterName": {"prefeitura"}}
	rr = executeRequest(a, authed(http.MethodGet, "/api/v1/occurrences?"+q.Encode(), token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	page = models.PaginatedOccurrences{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 8, page.Total)
	assert.Len(t, page.Data, 0)
	assert.Equal(t, 1, page.TotalPages)
	assert.NotNil(t, page.Data)
}

func TestOccurrencesListingBadQuery(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)

	for _, query := range []string{"page=abc", "limit=-1", "category=enchente", "startDate=ontem"} {
		t.Run(query, func(t *testing.T) {
			rr := executeRequest(a, authed(http.MethodGet, "/api/v1/occurrences?"+query, token, nil))
			checkResponseCode(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestOccurrencesListingHugePage(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)
	createOccurrence(t, a, token, validCreateRequest())
	createOccurrence(t, a, token, validCreateRequest())

	q := url.Values{"page": {"4611686018427387905"}, "limit": {"2"}}
	rr := executeRequest(a, authed(http.MethodGet, "/api/v1/occurrences?"+q.Encode(), token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var page models.PaginatedOccurrences
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Empty(t, page.Data)

	q = url.Values{"limit": {"9223372036854775807"}}
	rr = executeRequest(a, authed(http.MethodGet, "/api/v1/occurrences?"+q.Encode(), token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	page = models.PaginatedOccurrences{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 1, page.TotalPages)
}

func TestOccurrenceNotFound(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)

	for _, target := range []string{
		"/api/v1/occurrences/not-an-id",
		"/api/v1/occurrences/65f1c0ffee0000000000abcd",
		"/api/v1/occurrences/ra/1999-001",
	} {
		rr := executeRequest(a, authed(http.MethodGet, target, token, nil))
		checkResponseCode(t, http.StatusNotFound, rr.Code)
	}

	rr := executeRequest(a, authed(http.MethodPatch, "/api/v1/occurrences/65f1c0ffee0000000000abcd", token,
		map[string]string{"status": "fechada"}))
	checkResponseCode(t, http.StatusNotFound, rr.Code)
}

func TestUpdateOccurrenceRejectsBadDate(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)
	req := validCreateRequest()
	req.Category = models.CategoryOther
	created := createOccurrence(t, a, token, req)

	rr := executeRequest(a, authed(http.MethodPatch, "/api/v1/occurrences/"+created.ID, token,
		map[string]string{"startDateTime": "amanhã"}))

	checkResponseCode(t, http.StatusBadRequest, rr.Code)
}

func TestOccurrenceEventsOverWebSocket(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)
	srv := httptestServer(t, a)

	wsURL := "ws" + strings.TrimPrefix(srv, "http") + "/ws/occurrences?access_token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.Hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	req := validCreateRequest()
	req.Category = models.CategoryOther
	created := createOccurrence(t, a, token, req)

	var event struct {
		Event string            `json:"event"`
		Data  models.Occurrence `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventOccurrenceCreated, event.Event)
	assert.Equal(t, created.RANumber, event.Data.RANumber)
}

func TestOccurrenceWebSocketNeedsToken(t *testing.T) {
	a, _, _ := newTestApp(t, testConfig(), nil)
	srv := httptestServer(t, a)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv, "http")+"/ws/occurrences", nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
