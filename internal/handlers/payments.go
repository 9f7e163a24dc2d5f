package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/payment"
	"clinic-booking-server/internal/utils"
)

// PaymentHandler connects the lifecycle with the payment gateway.
type PaymentHandler struct {
	Lifecycle *lifecycle.Manager
	Gateway   *payment.Gateway
	Log       zerolog.Logger
	Now       func() time.Time
}

func NewPaymentHandler(mgr *lifecycle.Manager, gw *payment.Gateway, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{Lifecycle: mgr, Gateway: gw, Log: log, Now: time.Now}
}

// InitiatePayment records the payment intent on the appointment and returns
// the signed form the client posts to the gateway.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	ref := payment.NewTransactionUUID(h.Now())
	appt, err := h.Lifecycle.BeginPayment(c.Request.Context(), actor, c.Param("id"), ref)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	form, err := h.Gateway.BuildOutboundRequest(appt)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Payment initiated", form)
}

// Callback is where the gateway sends the user back. It never fails with an
// error page: every outcome ends in a redirect to the frontend.
func (h *PaymentHandler) Callback(c *gin.Context) {
	res, err := h.Gateway.Process(c.Request.Context(), c.Request, h.Lifecycle)
	evt := h.Log.Info()
	if err != nil {
		evt = h.Log.Warn().Err(err)
	}
	evt.Str("outcome", string(res.Outcome)).Str("appointment_id", res.AppointmentID).
		Str("signature", res.Verification.String()).Msg("payment callback")
	c.Redirect(http.StatusFound, res.Redirect)
}

// ConfirmPaymentRequest is the manual confirmation of a payment (admin).
type ConfirmPaymentRequest struct {
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	Reference string  `json:"reference"`
}

func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	appt, err := h.Lifecycle.ConfirmPayment(c.Request.Context(), actor, c.Param("id"), req.Amount, req.Reference)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Payment confirmed", appt)
}

func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	appt, err := h.Lifecycle.Refund(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Payment refunded", appt)
}
