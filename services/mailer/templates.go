package mailer

import (
	"fmt"

	"golang.org/x/net/html"
)

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #1f2937; max-width: 600px; margin: 0 auto; padding: 24px;">
%s
<p style="color: #6b7280; font-size: 12px; margin-top: 32px;">If you did not expect this email you can ignore it.</p>
</body>
</html>`

const buttonStyle = `display: inline-block; background: #111827; color: #ffffff; padding: 12px 24px; border-radius: 6px; text-decoration: none;`

func purchaseAccessBody(msg PurchaseAccess) string {
	name := msg.Name
	if name == "" {
		name = msg.To
	}

	content := fmt.Sprintf(`<h2>Thanks for your purchase, %s!</h2>
<p>You now own <strong>%s</strong>.</p>
<p><a href="%s" style="%s">Download the course</a></p>
<p>This link expires on %s. You can always get a fresh one from your library.</p>
<h3>Your account</h3>
<p>We created an account for you so you can come back any time.</p>
<p>Email: <code>%s</code><br>Password: <code>%s</code></p>
<p><a href="%s">Sign in</a> and change your password after your first login.</p>`,
		html.EscapeString(name),
		html.EscapeString(msg.CourseTitle),
		html.EscapeString(msg.DownloadURL), buttonStyle,
		msg.ExpiresAt.UTC().Format("January 2, 2006 15:04 MST"),
		html.EscapeString(msg.To),
		html.EscapeString(msg.Password),
		html.EscapeString(msg.LoginURL),
	)
	return fmt.Sprintf(layout, content)
}

func emailVerificationBody(msg EmailVerification) string {
	name := msg.Name
	if name == "" {
		name = msg.To
	}

	content := fmt.Sprintf(`<h2>Welcome, %s</h2>
<p>Please confirm your email address to finish setting up your account.</p>
<p><a href="%s" style="%s">Confirm email</a></p>
<p>The link is valid for 24 hours.</p>`,
		html.EscapeString(name),
		html.EscapeString(msg.VerifyURL), buttonStyle,
	)
	return fmt.Sprintf(layout, content)
}
