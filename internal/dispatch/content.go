package dispatch

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	textTemplate "text/template"
)

// Content is the rendered subject and bodies of a verification email, built
// once per dispatch and reused across every provider and identity attempt.
type Content struct {
	Subject  string
	HTMLBody string
	TextBody string
}

const verificationSubject = "Email Verification - Hello University"

var verificationHTML = template.Must(template.New("verification.html").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #667eea;">Welcome to Hello University!</h2>
    <p>Please verify your email by clicking the button below:</p>
    <a href="{{.URL}}" style="background-color: #667eea; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block; margin: 20px 0;">
        Verify Email
    </a>
    <p>Or copy and paste this link: {{.URL}}</p>
    <p><strong>This link will expire in 24 hours.</strong></p>
    <p>If you didn't create this account, please ignore this email.</p>
    <hr style="border: none; border-top: 1px solid #ddd; margin: 20px 0;">
    <p style="color: #666; font-size: 12px;">Hello University - Quality Education &amp; Learning</p>
</div>`))

var verificationText = textTemplate.Must(textTemplate.New("verification.txt").Parse(`Welcome to Hello University!

Please verify your email by opening this link:

{{.URL}}

This link will expire in 24 hours.

If you didn't create this account, please ignore this email.
`))

// BuildVerificationContent renders the verification email for a token. The
// verification link is the application base URL joined with the token path.
func BuildVerificationContent(baseURL, token string) (*Content, error) {
	verificationURL, err := url.JoinPath(baseURL, "verify-email", token)
	if err != nil {
		return nil, fmt.Errorf("dispatch: build verification url: %w", err)
	}

	data := struct{ URL string }{URL: verificationURL}

	var html strings.Builder
	if err := verificationHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("dispatch: render HTML body: %w", err)
	}

	var text strings.Builder
	if err := verificationText.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("dispatch: render text body: %w", err)
	}

	return &Content{
		Subject:  verificationSubject,
		HTMLBody: html.String(),
		TextBody: text.String(),
	}, nil
}
