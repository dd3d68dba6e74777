// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// VerificationEmailData holds data for verification email templates.
type VerificationEmailData struct {
	SiteName   string
	VerifyLink string
	ExpiresIn  string // e.g., "24 hours"
}

// BuildVerificationEmail creates a verification email with both HTML and text bodies.
func BuildVerificationEmail(data VerificationEmailData) Email {
	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("Confirm your %s email address", data.SiteName),
		TextBody: buildVerificationText(data),
		HTMLBody: buildVerificationHTML(data),
	}
}

func buildVerificationText(data VerificationEmailData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Welcome to %s.\n\n", data.SiteName))
	buf.WriteString("Confirm your email address by opening this link:\n")
	buf.WriteString(data.VerifyLink + "\n\n")
	buf.WriteString(fmt.Sprintf("This link expires in %s.\n\n", data.ExpiresIn))
	buf.WriteString("If you did not create an account, you can safely ignore this email.\n")
	return buf.String()
}

var verificationTmpl = template.Must(template.New("verification").Parse(verificationHTMLTemplate))

func buildVerificationHTML(data VerificationEmailData) string {
	var buf bytes.Buffer
	_ = verificationTmpl.Execute(&buf, data)
	return buf.String()
}

const verificationHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Confirm your email</title></head>
<body style="font-family: Arial, sans-serif; color: #374151;">
  <h2 style="color: #0f766e;">{{.SiteName}}</h2>
  <p>Confirm your email address to unlock your account.</p>
  <p><a href="{{.VerifyLink}}" style="padding: 10px 24px; background: #0f766e; color: #fff; text-decoration: none; border-radius: 6px;">Confirm email</a></p>
  <p style="font-size: 13px; color: #9ca3af;">This link expires in {{.ExpiresIn}}. If you did not create an account, ignore this email.</p>
</body>
</html>`
