// Package payment translates between appointments and the hosted payment
// form of the gateway: it signs outbound form payloads and turns gateway
// callbacks into lifecycle payment reports.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/models"
)

// SignedFieldNames is the canonical, ordered list of fields covered by the
// outbound signature.
const SignedFieldNames = "total_amount,transaction_uuid,product_code"

var (
	// ErrNoTransaction is returned when an appointment has no transaction
	// reference to put on the form.
	ErrNoTransaction = errors.New("appointment has no transaction reference")
	// ErrInvalidCallback is returned for callbacks missing required fields.
	ErrInvalidCallback = errors.New("invalid payment callback")
)

// Fields is a flat set of gateway form or callback fields.
type Fields map[string]string

// FormPayload is what the client posts to the gateway's hosted form.
type FormPayload struct {
	URL    string `json:"url"`
	Fields Fields `json:"fields"`
}

// Verification is the result of checking a callback signature.
type Verification int

const (
	// Unverified means the callback carried no signature or no field list.
	// Such callbacks are still processed.
	Unverified Verification = iota
	Verified
	Mismatch
)

func (v Verification) String() string {
	switch v {
	case Verified:
		return "verified"
	case Mismatch:
		return "mismatch"
	}
	return "unverified"
}

// Gateway holds the merchant settings shared with the payment provider.
type Gateway struct {
	cfg       config.PaymentConfig
	redirects Redirects
	log       zerolog.Logger
}

// NewGateway creates a gateway adapter. frontendURL is where users land
// after the callback has been processed.
func NewGateway(cfg config.PaymentConfig, frontendURL string, log zerolog.Logger) *Gateway {
	return &Gateway{
		cfg:       cfg,
		redirects: RedirectsFor(frontendURL),
		log:       log.With().Str("component", "payment").Logger(),
	}
}

// NewTransactionUUID returns a fresh transaction reference of the form
// yyMMdd-HHmmss-xxxxxxxx.
func NewTransactionUUID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format("060102-150405") + "-" + suffix
}

// FormatAmount renders an amount the way it is sent to and signed for the
// gateway.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// BuildOutboundRequest signs the form for paying appt under its current
// transaction reference.
func (g *Gateway) BuildOutboundRequest(appt *models.Appointment) (FormPayload, error) {
	if appt.PaymentID == "" {
		return FormPayload{}, ErrNoTransaction
	}
	amount := FormatAmount(appt.Amount)
	fields := Fields{
		"amount":                  amount,
		"tax_amount":              "0",
		"total_amount":            amount,
		"transaction_uuid":        appt.PaymentID,
		"product_code":            g.cfg.ProductCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             g.cfg.SuccessURL,
		"failure_url":             g.cfg.FailureURL,
		"signed_field_names":      SignedFieldNames,
	}
	fields["signature"] = Sign(g.cfg.SecretKey, fields, SignedFieldNames)
	return FormPayload{URL: g.cfg.FormURL, Fields: fields}, nil
}

// Sign computes the base64 HMAC-SHA256 of the comma-joined name=value pairs
// listed in names, in that order.
func Sign(secret string, fields Fields, names string) string {
	list := strings.Split(names, ",")
	parts := make([]string, 0, len(list))
	for _, name := range list {
		name = strings.TrimSpace(name)
		parts = append(parts, name+"="+fields[name])
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, ",")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature over the field list the gateway
// declared and compares it in constant time.
func (g *Gateway) VerifySignature(fields Fields) Verification {
	signature := fields["signature"]
	names := fields["signed_field_names"]
	if signature == "" || names == "" {
		return Unverified
	}
	expected := Sign(g.cfg.SecretKey, fields, names)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Mismatch
	}
	return Verified
}

// Report extracts the payment report from callback fields. total_amount is
// required only for a COMPLETE status; cancelled and failed callbacks often
// omit it and report an amount of 0.
func (g *Gateway) Report(fields Fields) (lifecycle.PaymentReport, error) {
	ref := strings.TrimSpace(fields["transaction_uuid"])
	if ref == "" {
		return lifecycle.PaymentReport{}, fmt.Errorf("%w: missing transaction_uuid", ErrInvalidCallback)
	}
	var amount float64
	if lifecycle.NormalizeGatewayStatus(fields["status"]) == lifecycle.GatewayComplete {
		raw := strings.ReplaceAll(strings.TrimSpace(fields["total_amount"]), ",", "")
		var err error
		if amount, err = strconv.ParseFloat(raw, 64); err != nil {
			return lifecycle.PaymentReport{}, fmt.Errorf("%w: total_amount %q", ErrInvalidCallback, fields["total_amount"])
		}
	}
	return lifecycle.PaymentReport{
		TransactionRef:       ref,
		Amount:               amount,
		GatewayStatus:        fields["status"],
		GatewayTransactionID: fields["transaction_code"],
	}, nil
}
