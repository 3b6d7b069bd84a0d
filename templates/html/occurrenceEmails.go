package templates

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// OccurrenceAlertData holds what the vegetation fire alert shows
type OccurrenceAlertData struct {
	RANumber      string
	Category      string
	Description   string
	Address       string
	RequesterName string
	StartDateTime string
	Link          string
}

// RenderOccurrenceAlertEmail generates the HTML sent to the alert recipients
// when a vegetation fire is registered
func RenderOccurrenceAlertEmail(d OccurrenceAlertData) string {
	rows := []struct{ label, value string }{
		{"R.A.", d.RANumber},
		{"Categoria", d.Category},
		{"Início", d.StartDateTime},
		{"Endereço", d.Address},
		{"Solicitante", d.RequesterName},
		{"Descrição", d.Description},
	}

	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, `<tr><td style="padding:6px 12px;font-weight:bold;">%s</td><td style="padding:6px 12px;">%s</td></tr>`,
			row.label, html.EscapeString(row.value))
	}

	link := ""
	if d.Link != "" {
		link = fmt.Sprintf(`<p><a href="%s">Abrir ocorrência</a></p>`, html.EscapeString(d.Link))
	}

	subject := fmt.Sprintf("Incêndio em vegetação registrado - R.A. %s", html.EscapeString(d.RANumber))
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <title>%s</title>
</head>
<body style="font-family: Arial, Helvetica, sans-serif; background-color: #f3f4f6;">
  <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff;">
    <div style="background-color: #dc2626; padding: 24px; text-align: center;">
      <h1 style="color: #ffffff; margin: 0; font-size: 20px;">%s</h1>
    </div>
    <div style="padding: 24px; color: #1f2937;">
      <table>%s</table>
      %s
    </div>
  </div>
</body>
</html>`, subject, subject, b.String(), link)
}

// DuplicateRANumbersText is the plain text body of the RA audit report
func DuplicateRANumbersText(year int, duplicates map[string][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Foram encontrados %d números de R.A. repetidos em %d.\n\n", len(duplicates), year)
	for _, ra := range sortedKeys(duplicates) {
		fmt.Fprintf(&b, "%s: %s\n", ra, strings.Join(duplicates[ra], ", "))
	}
	return b.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
