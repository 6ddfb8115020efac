package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"
)

// Message is one rendered e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// smtpTimeout bounds a whole send when the caller's context has no earlier
// deadline.
const smtpTimeout = 30 * time.Second

// SMTPMailer sends plain-text mail through an SMTP relay. Every Send dials a
// fresh connection whose lifetime is bound to the caller's context.
type SMTPMailer struct {
	host string
	from string
	opts []mail.Option
}

// NewSMTPMailer returns a mailer for host:port. Empty credentials disable
// authentication. STARTTLS is used when the relay offers it; port 465 speaks
// implicit TLS.
func NewSMTPMailer(host, port, username, password, from string) (*SMTPMailer, error) {
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid SMTP port %q", port)
	}
	if err := mail.NewMsg().From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}

	opts := []mail.Option{
		mail.WithPort(p),
		mail.WithTimeout(smtpTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if p == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}
	return &SMTPMailer{host: host, from: from, opts: opts}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	em := mail.NewMsg()
	if err := em.From(m.from); err != nil {
		return fmt.Errorf("sender %q: %w", m.from, err)
	}
	if err := em.To(msg.To); err != nil {
		return fmt.Errorf("recipient %q: %w", msg.To, err)
	}
	em.Subject(msg.Subject)
	em.SetBodyString(mail.TypeTextPlain, msg.Body)

	opts := append(slices.Clone(m.opts), mail.WithDialContextFunc(boundDialer(ctx)))
	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, em); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// boundDialer returns connections whose deadline follows ctx, so a relay
// that stalls mid-conversation cannot outlive the caller. Cancelling ctx
// interrupts a blocked read or write immediately.
func boundDialer(ctx context.Context) mail.DialContextFunc {
	return func(dialCtx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(dialCtx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(smtpTimeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
		stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
		return &boundConn{Conn: conn, stop: stop}, nil
	}
}

type boundConn struct {
	net.Conn
	stop func() bool
}

func (c *boundConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// LogMailer only logs. Used when no SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Message) error {
	slog.Info("mail (not sent, no SMTP host)", "to", m.To, "subject", m.Subject)
	return nil
}

var (
	catalogGapTmpl = template.Must(template.New("catalog_gap").Parse(
		`User {{.Requester}} asked for a catalog entry that does not exist yet.

Brand: {{.BrandName}}
Model: {{with .ModelName}}{{.}}{{else}}(not specified){{end}}

Please review the request and add the brand or model if appropriate.
`))

	profanityTmpl = template.Must(template.New("profanity").Parse(
		`A listing by {{.Requester}} was deactivated after repeated prohibited language.

Last submitted description:
{{.Description}}

The listing stays rejected until it is reviewed manually.
`))
)

// Render builds the subject and body for an intent.
func Render(in Intent) (subject, body string, err error) {
	var tmpl *template.Template
	switch in.Kind {
	case KindCatalogGap:
		subject, tmpl = "Review Catalog Request", catalogGapTmpl
	case KindProfanity:
		subject, tmpl = "Profanity Alert: Review Listing", profanityTmpl
	default:
		return "", "", fmt.Errorf("unknown intent kind %q", in.Kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, in); err != nil {
		return "", "", fmt.Errorf("render %s: %w", in.Kind, err)
	}
	return subject, buf.String(), nil
}
