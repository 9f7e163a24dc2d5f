package payment

import (
	"net/url"
	"strings"

	"clinic-booking-server/internal/lifecycle"
)

// Outcomes decided by the adapter before the lifecycle sees a report.
const (
	OutcomeSignatureMismatch lifecycle.PaymentOutcome = "signature_mismatch"
	OutcomeInvalidCallback   lifecycle.PaymentOutcome = "invalid_callback"
)

// Redirects are the pages a user lands on after paying.
type Redirects struct {
	Success          string
	IntegrityFailure string
	Cancelled        string
	Pending          string
}

// RedirectsFor derives the landing pages from the frontend base URL.
func RedirectsFor(frontendURL string) Redirects {
	base := strings.TrimRight(frontendURL, "/")
	return Redirects{
		Success:          base + "/payment/success",
		IntegrityFailure: base + "/payment/failure",
		Cancelled:        base + "/payment/cancelled",
		Pending:          base + "/payment/pending",
	}
}

// Decide maps an outcome to its landing page. Integrity failures share one
// page and carry the cause in the reason parameter so they are never
// confused with a payment the user cancelled.
func (r Redirects) Decide(outcome lifecycle.PaymentOutcome, appointmentID string) string {
	q := url.Values{}
	if appointmentID != "" {
		q.Set("appointmentId", appointmentID)
	}
	var target string
	switch outcome {
	case lifecycle.OutcomePaid:
		target = r.Success
	case lifecycle.OutcomeAmountMismatch, OutcomeSignatureMismatch, OutcomeInvalidCallback:
		target = r.IntegrityFailure
		q.Set("reason", string(outcome))
	case lifecycle.OutcomeCancelled:
		target = r.Cancelled
	default:
		target = r.Pending
	}
	if len(q) == 0 {
		return target
	}
	return target + "?" + q.Encode()
}

// DecideRedirect is Decide on the gateway's configured landing pages.
func (g *Gateway) DecideRedirect(outcome lifecycle.PaymentOutcome, appointmentID string) string {
	return g.redirects.Decide(outcome, appointmentID)
}
