package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"bookhook/internal/webhook"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
)

// MailSettings configures SMTP delivery of booking emails
type MailSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// MailNotifier emails the business a plain-text summary of each booking change.
type MailNotifier struct {
	From   string
	To     []string
	Sender func(context.Context, *email.Email) error
}

// NewMailNotifier sends through the SMTP server in settings, authenticating
// with PLAIN auth when a username is set.
func NewMailNotifier(settings MailSettings) *MailNotifier {
	return &MailNotifier{
		From:   settings.From,
		To:     settings.To,
		Sender: smtpSender(settings),
	}
}

func smtpSender(settings MailSettings) func(context.Context, *email.Email) error {
	port := settings.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(settings.Host, strconv.Itoa(port))

	var auth smtp.Auth
	if settings.Username != "" {
		auth = smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)
	}

	return func(ctx context.Context, e *email.Email) error {
		id := make(textproto.MIMEHeader)
		id.Add("X-Entity-Ref-ID", uuid.New().String())
		e.Headers = id

		return sendMail(ctx, addr, settings.Host, auth, e)
	}
}

// sendMail delivers e over one SMTP session. Every network operation is bound
// to ctx, so a server that accepts the connection and then stalls cannot hold
// the caller past its deadline.
func sendMail(ctx context.Context, addr, host string, auth smtp.Auth, e *email.Email) error {
	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("invalid sender %q: %w", e.From, err)
	}

	var recipients []string
	for _, list := range [][]string{e.To, e.Cc, e.Bcc} {
		for _, r := range list {
			rcpt, err := mail.ParseAddress(r)
			if err != nil {
				return fmt.Errorf("invalid recipient %q: %w", r, err)
			}
			recipients = append(recipients, rcpt.Address)
		}
	}
	if len(recipients) == 0 {
		return errors.New("no recipients")
	}

	msg, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, r := range recipients {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", r, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}

	return c.Quit()
}

func (n *MailNotifier) Notify(ctx context.Context, ev webhook.Event) error {
	subject, ok := mailSubject(ev)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.From
	e.To = n.To
	e.Subject = subject
	e.Text = mailBody(ev)

	if err := n.Sender(ctx, e); err != nil {
		return fmt.Errorf("failed to send booking email: %w", err)
	}
	return nil
}

func mailSubject(ev webhook.Event) (string, bool) {
	switch ev.Kind {
	case webhook.KindBookingCreated:
		return "New booking: " + ev.EventName, true
	case webhook.KindBookingCanceled:
		return "Booking canceled: " + ev.EventName, true
	default:
		return "", false
	}
}

func mailBody(ev webhook.Event) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Event:    %s\n", ev.EventName)
	fmt.Fprintf(&b, "Invitee:  %s <%s>\n", ev.InviteeName, ev.InviteeEmail)
	fmt.Fprintf(&b, "Start:    %s\n", formatTime(ev.StartTime))
	fmt.Fprintf(&b, "End:      %s\n", formatTime(ev.EndTime))
	if ev.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", ev.Location)
	}
	if ev.Kind == webhook.KindBookingCanceled {
		b.WriteString("\nThis booking has been canceled.\n")
	}
	fmt.Fprintf(&b, "\nInvitee ID: %s\n", ev.InviteeID)
	return []byte(b.String())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
