package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"github.com/campusjobs/jobboard-auth/app/entity"
)

const resetSubject = "Reset your Job Board password"

var resetTemplate = template.Must(template.New("password_reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Password reset</h2>
  <p>We received a request to reset the password for {{.Email}}.</p>
  <p><a href="{{.Link}}" style="background:#2563eb;color:#fff;padding:10px 16px;border-radius:4px;text-decoration:none;">Choose a new password</a></p>
  <p>The link expires in {{.ValidFor}}. If you did not ask for a reset you can ignore this email.</p>
</body>
</html>`))

type resetData struct {
	Email    string
	Link     string
	ValidFor string
}

// ResetLink builds the frontend URL that carries a raw reset token.
func ResetLink(baseURL, token, email string, role entity.Role) string {
	query := url.Values{}
	query.Set("token", token)
	query.Set("email", email)
	query.Set("role", string(role))
	return baseURL + "/reset-password?" + query.Encode()
}

func ResetMessage(to, link, validFor string) (Message, error) {
	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, resetData{Email: to, Link: link, ValidFor: validFor}); err != nil {
		return Message{}, fmt.Errorf("render reset email: %w", err)
	}

	return Message{
		To:      to,
		Subject: resetSubject,
		TextBody: fmt.Sprintf(
			"We received a request to reset the password for %s.\n\nOpen this link to choose a new password:\n%s\n\nThe link expires in %s.",
			to, link, validFor,
		),
		HTMLBody: body.String(),
	}, nil
}
