package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"clinic-booking-server/internal/lifecycle"
)

const maxCallbackBody = 64 << 10

// ParseCallback collects the callback fields from the query string and the
// request body. The gateway may wrap everything in a base64 "data" field
// holding either JSON or a URL-encoded string; its contents take precedence
// over the outer fields.
func ParseCallback(r *http.Request) (Fields, error) {
	fields := Fields{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	if r.Body != nil && r.Method != http.MethodGet {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrInvalidCallback, err)
		}
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		var inner Fields
		switch {
		case len(bytes.TrimSpace(body)) == 0:
		case mediaType == "application/json":
			inner, err = decodeJSON(body)
		default:
			inner, err = decodeQuery(string(body))
		}
		if err != nil {
			return nil, err
		}
		for k, v := range inner {
			fields[k] = v
		}
	}

	if data, ok := fields["data"]; ok {
		inner, err := decodeData(data)
		if err != nil {
			return nil, err
		}
		delete(fields, "data")
		for k, v := range inner {
			fields[k] = v
		}
	}
	return fields, nil
}

func decodeData(data string) (Fields, error) {
	data = strings.TrimSpace(data)
	// An unescaped '+' arrives as a space after query decoding.
	data = strings.ReplaceAll(data, " ", "+")
	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err = enc.DecodeString(data); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: data is not base64", ErrInvalidCallback)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return decodeJSON(trimmed)
	}
	return decodeQuery(string(trimmed))
}

func decodeQuery(s string) (Fields, error) {
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	out := Fields{}
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out, nil
}

// decodeJSON keeps numbers in their original textual form so signatures
// computed by the gateway over them still verify.
func decodeJSON(b []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	out := make(Fields, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			enc, _ := json.Marshal(t)
			out[k] = string(enc)
		}
	}
	return out, nil
}

// Recorder applies payment reports to appointments.
type Recorder interface {
	RecordPayment(ctx context.Context, report lifecycle.PaymentReport) (lifecycle.PaymentResult, error)
}

// CallbackResult is the outcome of one gateway callback.
type CallbackResult struct {
	Outcome       lifecycle.PaymentOutcome
	Verification  Verification
	AppointmentID string
	Redirect      string
}

// Process handles a gateway callback end to end: parse, verify, record and
// pick the landing page. The result always carries a redirect; the error is
// for logging.
func (g *Gateway) Process(ctx context.Context, r *http.Request, rec Recorder) (CallbackResult, error) {
	res := CallbackResult{}
	finish := func(outcome lifecycle.PaymentOutcome, err error) (CallbackResult, error) {
		res.Outcome = outcome
		res.Redirect = g.DecideRedirect(outcome, res.AppointmentID)
		return res, err
	}

	fields, err := ParseCallback(r)
	if err != nil {
		return finish(OutcomeInvalidCallback, err)
	}

	res.Verification = g.VerifySignature(fields)
	logEvt := g.log.With().Str("transaction_uuid", fields["transaction_uuid"]).
		Str("signature", res.Verification.String()).Logger()
	switch res.Verification {
	case Mismatch:
		logEvt.Error().Msg("payment callback signature mismatch")
		return finish(OutcomeSignatureMismatch, fmt.Errorf("%w: signature mismatch", lifecycle.ErrIntegrityViolation))
	case Unverified:
		// The gateway omitted its signature. The callback is trusted as is.
		logEvt.Warn().Msg("processing unsigned payment callback")
	}

	report, err := g.Report(fields)
	if err != nil {
		logEvt.Warn().Err(err).Msg("malformed payment callback")
		return finish(OutcomeInvalidCallback, err)
	}

	result, err := rec.RecordPayment(ctx, report)
	if result.Appointment != nil {
		res.AppointmentID = result.Appointment.ID
	}
	switch {
	case errors.Is(err, lifecycle.ErrAmountMismatch):
		return finish(lifecycle.OutcomeAmountMismatch, err)
	case errors.Is(err, lifecycle.ErrNotFound):
		logEvt.Warn().Err(err).Msg("payment callback for unknown transaction")
		return finish(OutcomeInvalidCallback, err)
	case err != nil:
		logEvt.Error().Err(err).Msg("payment callback not recorded")
		return finish(lifecycle.OutcomePending, err)
	}
	return finish(result.Outcome, nil)
}
