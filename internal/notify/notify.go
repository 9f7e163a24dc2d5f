// Package notify stores user notifications and sends the matching email.
// Delivery is best-effort: nothing here is allowed to fail the caller.
package notify

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

// Message is one notification addressed to one user.
type Message struct {
	UserID        string
	Kind          models.NotificationKind
	Title         string
	Body          string
	AppointmentID string
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// Dispatcher writes a Notification record and emails the recipient in the
// background. Email runs detached from the request context with its own
// timeout.
type Dispatcher struct {
	notifications store.NotificationRepository
	users         store.UserRepository
	email         EmailSender
	log           zerolog.Logger
	emailTimeout  time.Duration
	wg            sync.WaitGroup
}

// NewDispatcher builds a Dispatcher. A nil email sender disables email.
func NewDispatcher(st store.Store, email EmailSender, log zerolog.Logger) *Dispatcher {
	if email == nil {
		email = NewLogSender(log)
	}
	return &Dispatcher{
		notifications: st.Notifications(),
		users:         st.Users(),
		email:         email,
		log:           log.With().Str("component", "notify").Logger(),
		emailTimeout:  30 * time.Second,
	}
}

// Notify records msg and queues the email. The returned error reports only
// whether the notification record was written; callers are expected to log
// and ignore it.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	n := &models.Notification{
		UserID:        msg.UserID,
		Kind:          msg.Kind,
		Title:         msg.Title,
		Message:       msg.Body,
		AppointmentID: msg.AppointmentID,
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		d.log.Warn().Err(err).Str("user_id", msg.UserID).Str("kind", string(msg.Kind)).Msg("notification not stored")
		d.sendEmail(msg)
		return fmt.Errorf("store notification: %w", err)
	}
	d.sendEmail(msg)
	return nil
}

func (d *Dispatcher) sendEmail(msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error().Interface("panic", r).Str("user_id", msg.UserID).Msg("email sender panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.emailTimeout)
		defer cancel()

		user, err := d.users.GetByID(ctx, msg.UserID)
		if err != nil {
			d.log.Warn().Err(err).Str("user_id", msg.UserID).Msg("email skipped: recipient lookup failed")
			return
		}
		if err := d.email.SendEmail(ctx, user.Email, msg.Title, renderHTML(user, msg)); err != nil {
			d.log.Warn().Err(err).Str("user_id", msg.UserID).Str("kind", string(msg.Kind)).Msg("email not sent")
		}
	}()
}

// Wait blocks until queued emails have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func renderHTML(user *models.User, msg Message) string {
	return fmt.Sprintf("<p>Dear %s,</p><p>%s</p><p>Clinic Booking</p>",
		html.EscapeString(user.FullName()), html.EscapeString(msg.Body))
}
