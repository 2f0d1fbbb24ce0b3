package otp

import (
	"bytes"
	htmltemplate "html/template"
	"math"
	"strings"
	texttemplate "text/template"
	"time"
)

type emailMessage struct {
	Subject string
	HTML    string
	Text    string
}

type emailData struct {
	Product       string
	Code          string
	ExpiryMinutes int
}

var htmlBody = htmltemplate.Must(htmltemplate.New("otp_html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
	<h2>{{.Product}} email verification</h2>
	<p>Use the code below to finish signing in:</p>
	<p style="font-size: 28px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
	<p>This code expires in {{.ExpiryMinutes}} minutes.</p>
	<p>If you did not request this code, you can ignore this email.</p>
</body>
</html>
`))

var textBody = texttemplate.Must(texttemplate.New("otp_text").Parse(`{{.Product}} email verification

Your verification code is: {{.Code}}

This code expires in {{.ExpiryMinutes}} minutes.
If you did not request this code, you can ignore this email.
`))

func renderEmail(product, code string, expiry time.Duration) (emailMessage, error) {
	data := emailData{
		Product:       product,
		Code:          spacedDigits(code),
		ExpiryMinutes: int(math.Ceil(expiry.Minutes())),
	}
	var h, t bytes.Buffer
	if err := htmlBody.Execute(&h, data); err != nil {
		return emailMessage{}, err
	}
	if err := textBody.Execute(&t, data); err != nil {
		return emailMessage{}, err
	}
	return emailMessage{
		Subject: product + " - Your verification code",
		HTML:    h.String(),
		Text:    t.String(),
	}, nil
}

// spacedDigits renders "123456" as "1 2 3 4 5 6".
func spacedDigits(code string) string {
	return strings.Join(strings.Split(code, ""), " ")
}
