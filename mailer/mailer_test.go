package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/civil-defense-api/config"
	"github.com/linesmerrill/civil-defense-api/models"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to []string, subject, plainText, htmlContent string) error {
	return m.Called(ctx, to, subject, plainText, htmlContent).Error(0)
}

func TestNewWithoutKeyIsNoop(t *testing.T) {
	m := New(&config.Config{})
	assert.IsType(t, Noop{}, m)
	assert.NoError(t, m.Send(context.Background(), []string{"a@example.com"}, "s", "p", "h"))
}

func TestSendGridPostsMessage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendPath, r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := &SendGrid{APIKey: "key", Host: srv.URL, From: mail.NewEmail("Defesa Civil", "from@example.com")}
	err := s.Send(context.Background(), []string{"a@example.com", "b@example.com"}, "Assunto", "texto", "<p>texto</p>")

	require.NoError(t, err)
	assert.Equal(t, "Assunto", got["subject"])
	personalizations := got["personalizations"].([]interface{})
	assert.Len(t, personalizations[0].(map[string]interface{})["to"], 2)
}

func TestSendGridErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := &SendGrid{APIKey: "bad", Host: srv.URL, From: mail.NewEmail("", "from@example.com")}
	err := s.Send(context.Background(), []string{"a@example.com"}, "s", "p", "h")
	assert.EqualError(t, err, "sendgrid returned status 401")
}

func TestSendGridWithoutRecipientsSendsNothing(t *testing.T) {
	s := &SendGrid{APIKey: "key", Host: "http://127.0.0.1:1"}
	assert.NoError(t, s.Send(context.Background(), nil, "s", "p", "h"))
}

func TestOccurrenceAlertOnlyForVegetationFire(t *testing.T) {
	m := &mockMailer{}
	err := OccurrenceAlert(context.Background(), m, []string{"a@example.com"}, "", models.Occurrence{Category: models.CategoryOther})
	assert.NoError(t, err)
	m.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOccurrenceAlertSendsToRecipients(t *testing.T) {
	m := &mockMailer{}
	m.On("Send", mock.Anything, []string{"a@example.com"}, "Incêndio em vegetação registrado - R.A. 2024-003",
		mock.AnythingOfType("string"), mock.MatchedBy(func(h string) bool {
			return assert.Contains(t, h, "https://dc.local/api/v1/occurrences/abc")
		})).Return(nil)

	o := models.Occurrence{
		ID:            "abc",
		RANumber:      "2024-003",
		Category:      models.CategoryVegetationFire,
		StartDateTime: time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC),
		Location:      &models.Location{Address: "Rua A"},
	}
	err := OccurrenceAlert(context.Background(), m, []string{"a@example.com"}, "https://dc.local", o)

	assert.NoError(t, err)
	m.AssertExpectations(t)
}

func TestOccurrenceAlertWithoutRecipients(t *testing.T) {
	err := OccurrenceAlert(context.Background(), Noop{}, nil, "", models.Occurrence{Category: models.CategoryVegetationFire})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestDuplicateReport(t *testing.T) {
	m := &mockMailer{}
	m.On("Send", mock.Anything, []string{"a@example.com"}, "Auditoria de R.A. 2024: 1 números repetidos",
		mock.MatchedBy(func(p string) bool { return assert.Contains(t, p, "2024-005: x, y") }),
		mock.AnythingOfType("string")).Return(nil)

	err := DuplicateReport(context.Background(), m, []string{"a@example.com"}, 2024, []models.DuplicateRANumber{
		{RANumber: "2024-005", OccurrenceIDs: []string{"x", "y"}},
	})

	assert.NoError(t, err)
	m.AssertExpectations(t)
	assert.NoError(t, DuplicateReport(context.Background(), m, nil, 2024, nil))
}
