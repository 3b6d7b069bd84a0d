package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/linesmerrill/civil-defense-api/config"
	"github.com/linesmerrill/civil-defense-api/models"
	templates "github.com/linesmerrill/civil-defense-api/templates/html"
)

const sendPath = "/v3/mail/send"

// Mailer sends html mail with a plain text alternative
type Mailer interface {
	Send(ctx context.Context, to []string, subject, plainText, htmlContent string) error
}

// New returns a sendgrid mailer when an api key is configured, otherwise a
// mailer that only logs
func New(conf *config.Config) Mailer {
	if conf.SendGridAPIKey == "" {
		return Noop{}
	}
	return &SendGrid{
		APIKey: conf.SendGridAPIKey,
		Host:   conf.SendGridHost,
		From:   mail.NewEmail("Defesa Civil", conf.AlertFromEmail),
	}
}

// SendGrid delivers mail through the sendgrid v3 api
type SendGrid struct {
	APIKey string
	Host   string
	From   *mail.Email
}

// Send posts one message addressed to every recipient
func (s *SendGrid) Send(ctx context.Context, to []string, subject, plainText, htmlContent string) error {
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := mail.NewV3Mail()
	message.SetFrom(s.From)
	message.Subject = subject
	p := mail.NewPersonalization()
	for _, addr := range to {
		p.AddTos(mail.NewEmail("", addr))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", plainText), mail.NewContent("text/html", htmlContent))

	request := sendgrid.GetRequest(s.APIKey, sendPath, s.Host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)
	response, err := sendgrid.API(request)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	return nil
}

// Noop logs the subject instead of sending anything
type Noop struct{}

// Send implements Mailer
func (Noop) Send(_ context.Context, to []string, subject, _, _ string) error {
	zap.S().Debugw("mail not sent, sendgrid is not configured", "subject", subject, "recipients", len(to))
	return nil
}

// ErrNoRecipients is returned when an alert has nobody to go to
var ErrNoRecipients = errors.New("no alert recipients configured")

// OccurrenceAlert mails the vegetation fire alert for o. Other categories are ignored.
func OccurrenceAlert(ctx context.Context, m Mailer, recipients []string, baseURL string, o models.Occurrence) error {
	if o.Category != models.CategoryVegetationFire {
		return nil
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	data := templates.OccurrenceAlertData{
		RANumber:      o.RANumber,
		Category:      string(o.Category),
		Description:   o.Description,
		RequesterName: o.RequesterName,
		StartDateTime: o.StartDateTime.Format(time.RFC3339),
	}
	if o.Location != nil {
		data.Address = o.Location.Address
	}
	if baseURL != "" {
		data.Link = fmt.Sprintf("%s/api/v1/occurrences/%s", baseURL, o.ID)
	}

	subject := fmt.Sprintf("Incêndio em vegetação registrado - R.A. %s", o.RANumber)
	plain := fmt.Sprintf("R.A. %s\n%s\n%s", o.RANumber, data.Address, o.Description)
	return m.Send(ctx, recipients, subject, plain, templates.RenderOccurrenceAlertEmail(data))
}

// DuplicateReport mails the list of RA numbers shared by more than one occurrence
func DuplicateReport(ctx context.Context, m Mailer, recipients []string, year int, duplicates []models.DuplicateRANumber) error {
	if len(duplicates) == 0 {
		return nil
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	byRA := make(map[string][]string, len(duplicates))
	for _, d := range duplicates {
		byRA[d.RANumber] = d.OccurrenceIDs
	}
	subject := fmt.Sprintf("Auditoria de R.A. %d: %d números repetidos", year, len(duplicates))
	plain := templates.DuplicateRANumbersText(year, byRA)
	return m.Send(ctx, recipients, subject, plain, templates.RenderGenericEmail(subject, plain))
}
