package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

// Score badge colours. Boundary values land in the higher band.
const (
	badgeGreen  = "#2e7d32"
	badgeYellow = "#f9a825"
	badgeOrange = "#ef6c00"
)

func badgeColor(score int) string {
	switch {
	case score >= 80:
		return badgeGreen
	case score >= 70:
		return badgeYellow
	default:
		return badgeOrange
	}
}

// ConfirmationEmail builds the double-opt-in email. confirmURL must already
// carry the token.
func ConfirmationEmail(confirmURL string) (subject, body string) {
	subject = "Confirm your job digest subscription"

	var b strings.Builder
	b.WriteString(`<html><body style="font-family:Arial,Helvetica,sans-serif;color:#222;">`)
	b.WriteString(`<h2>Almost there!</h2>`)
	b.WriteString(`<p>Click the button below to confirm your subscription and start receiving personalised job digests.</p>`)
	fmt.Fprintf(&b, `<p><a href="%s" style="display:inline-block;padding:12px 24px;background:#1565c0;color:#fff;text-decoration:none;border-radius:6px;">Confirm subscription</a></p>`, html.EscapeString(confirmURL))
	b.WriteString(`<p style="color:#777;font-size:13px;">This link expires in 24 hours. If you didn't sign up, you can ignore this email.</p>`)
	b.WriteString(`</body></html>`)
	return subject, b.String()
}

// WelcomeEmail is sent once after a successful confirmation.
func WelcomeEmail() (subject, body string) {
	subject = "Subscription confirmed"

	var b strings.Builder
	b.WriteString(`<html><body style="font-family:Arial,Helvetica,sans-serif;color:#222;">`)
	b.WriteString(`<h2>You're in!</h2>`)
	b.WriteString(`<p>Your subscription is active for the next 30 days. Upload your CV and preferences to start receiving matched jobs with your next digest.</p>`)
	b.WriteString(`</body></html>`)
	return subject, b.String()
}

// DigestEmail renders the scored listings into one digest message.
// Jobs are expected pre-sorted by score descending and pre-filtered by the
// subscriber's threshold.
func DigestEmail(jobs []model.EvaluatedJob, unsubscribeURL string) (subject, body string) {
	subject = fmt.Sprintf("Your job digest: %d new match", len(jobs))
	if len(jobs) != 1 {
		subject += "es"
	}

	var b strings.Builder
	b.WriteString(`<html><body style="font-family:Arial,Helvetica,sans-serif;color:#222;max-width:680px;margin:0 auto;">`)
	b.WriteString(`<h2>Your new job matches</h2>`)
	b.WriteString(`<table style="border-collapse:collapse;width:100%;">`)

	for _, ej := range jobs {
		score := ej.Evaluation.Score
		b.WriteString(`<tr style="border-bottom:1px solid #e0e0e0;">`)

		fmt.Fprintf(&b,
			`<td style="padding:14px 12px 14px 0;vertical-align:top;width:64px;"><span style="display:inline-block;min-width:44px;text-align:center;padding:6px 8px;border-radius:6px;background:%s;color:#fff;font-weight:bold;">%d</span></td>`,
			badgeColor(score), score)

		b.WriteString(`<td style="padding:14px 0;vertical-align:top;">`)
		fmt.Fprintf(&b, `<a href="%s" style="font-size:16px;font-weight:bold;color:#1565c0;text-decoration:none;">%s</a><br>`,
			html.EscapeString(ej.Job.URL()), html.EscapeString(ej.Job.Title))
		fmt.Fprintf(&b, `<span style="color:#555;">%s</span>`, html.EscapeString(ej.Job.CompanyName))
		if ej.Job.Location != "" {
			fmt.Fprintf(&b, `<span style="color:#999;"> &middot; %s</span>`, html.EscapeString(ej.Job.Location))
		}
		if ej.Evaluation.Reasoning != "" {
			fmt.Fprintf(&b, `<p style="margin:8px 0 0;color:#444;font-size:14px;">%s</p>`, html.EscapeString(ej.Evaluation.Reasoning))
		}
		if len(ej.Evaluation.MissingSkills) > 0 {
			fmt.Fprintf(&b, `<p style="margin:6px 0 0;color:#ef6c00;font-size:13px;">Missing: %s</p>`,
				html.EscapeString(strings.Join(ej.Evaluation.MissingSkills, ", ")))
		}
		b.WriteString(`</td></tr>`)
	}

	b.WriteString(`</table>`)
	fmt.Fprintf(&b,
		`<p style="margin-top:28px;color:#999;font-size:12px;">You receive this digest because you subscribed with your CV. <a href="%s" style="color:#999;">Unsubscribe</a> at any time.</p>`,
		html.EscapeString(unsubscribeURL))
	b.WriteString(`</body></html>`)
	return subject, b.String()
}
