package intake

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/Zachkp/portfolio/internal/mailer"
	"github.com/Zachkp/portfolio/internal/submission"
)

const textBody = `New contact form submission from your portfolio:

Name: %s
Email: %s
Subject: %s
Message:
%s

---
Sent from your portfolio contact form
`

var htmlBody = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>New contact form submission</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
<p><strong>Subject:</strong> {{.Subject}}</p>
<p><strong>Message:</strong><br>{{.Message}}</p>
<hr>
<p><small>Sent from your portfolio contact form ({{.ID}})</small></p>
</body>
</html>
`))

// composeNotification builds the email the site owner receives for sub.
func composeNotification(sub submission.Submission, to, subjectPrefix string) (mailer.Message, error) {
	var html bytes.Buffer
	err := htmlBody.Execute(&html, struct {
		ID, Name, Email, Subject string
		Message                  template.HTML
	}{
		ID:      sub.ID,
		Name:    sub.Name,
		Email:   sub.Email,
		Subject: sub.Subject,
		Message: messageHTML(sub.Message),
	})
	if err != nil {
		return mailer.Message{}, fmt.Errorf("unable to render notification - %w", err)
	}

	return mailer.Message{
		To:      to,
		ReplyTo: strings.TrimSpace(sub.Email),
		Subject: subjectPrefix + strings.TrimSpace(sub.Subject),
		Text:    fmt.Sprintf(textBody, sub.Name, sub.Email, sub.Subject, sub.Message),
		HTML:    html.String(),
	}, nil
}

// messageHTML escapes each line and joins them with <br>.
func messageHTML(msg string) template.HTML {
	lines := strings.Split(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = template.HTMLEscapeString(l)
	}
	return template.HTML(strings.Join(lines, "<br>"))
}
