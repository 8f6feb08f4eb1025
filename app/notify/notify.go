package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"gopkg.in/gomail.v2"
)

const (
	ChannelUser  = "user"
	ChannelAdmin = "admin"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(msg Message) error
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)
	return s.dialer.DialAndSend(m)
}

// LogSender writes messages to the log; used when SMTP is not configured.
type LogSender struct {
	logger logrus.FieldLogger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: factory.NewModuleLogger("notify-log")}
}

func (s *LogSender) Send(msg Message) error {
	s.logger.WithField("to", msg.To).WithField("subject", msg.Subject).Info("Notification")
	return nil
}

type Activation struct {
	SubscriberID  string
	Email         string
	PackageID     uint64
	PackageTitle  string
	PaymentMethod string
	Recurring     bool
	Amount        string
	DueAt         time.Time
}

type BankTransferNotice struct {
	TransferID   uint64
	SubscriberID string
	Email        string
	PackageTitle string
	Reference    string
	Amount       string
}

// Delivery reports which channels accepted a message.
type Delivery struct {
	Channel   string
	Recipient string
	Err       error
}

type Notifier struct {
	sender     Sender
	adminEmail string
	logger     logrus.FieldLogger
}

func NewNotifier(sender Sender, adminEmail string) *Notifier {
	return &Notifier{
		sender:     sender,
		adminEmail: strings.TrimSpace(adminEmail),
		logger:     factory.NewModuleLogger("notifier"),
	}
}

// MembershipActivated mails the subscriber and the site admin.
func (n *Notifier) MembershipActivated(_ context.Context, a Activation) []Delivery {
	kind := "one-time"
	if a.Recurring {
		kind = "recurring"
	}

	deliveries := make([]Delivery, 0, 2)
	if a.Email != "" {
		deliveries = append(deliveries, n.deliver(ChannelUser, Message{
			To:      a.Email,
			Subject: fmt.Sprintf("Your %s membership is active", a.PackageTitle),
			Body: fmt.Sprintf(
				"<p>Thank you for your purchase.</p><p>Package: %s<br>Payment: %s (%s)<br>Amount: %s<br>Valid until: %s</p>",
				a.PackageTitle, a.PaymentMethod, kind, a.Amount, a.DueAt.UTC().Format(time.RFC1123),
			),
		}))
	}
	if n.adminEmail != "" {
		deliveries = append(deliveries, n.deliver(ChannelAdmin, Message{
			To:      n.adminEmail,
			Subject: fmt.Sprintf("New membership purchase: %s", a.PackageTitle),
			Body: fmt.Sprintf(
				"<p>Subscriber %s (%s) purchased %s via %s (%s) for %s.</p>",
				a.SubscriberID, a.Email, a.PackageTitle, a.PaymentMethod, kind, a.Amount,
			),
		}))
	}
	return deliveries
}

func (n *Notifier) BankTransferSubmitted(_ context.Context, notice BankTransferNotice) []Delivery {
	if n.adminEmail == "" {
		return nil
	}
	return []Delivery{n.deliver(ChannelAdmin, Message{
		To:      n.adminEmail,
		Subject: fmt.Sprintf("Bank transfer #%d awaiting confirmation", notice.TransferID),
		Body: fmt.Sprintf(
			"<p>Subscriber %s (%s) reports a bank transfer of %s for %s.</p><p>Reference: %s</p>",
			notice.SubscriberID, notice.Email, notice.Amount, notice.PackageTitle, notice.Reference,
		),
	})}
}

func (n *Notifier) deliver(channel string, msg Message) Delivery {
	err := n.sender.Send(msg)
	if err != nil {
		n.logger.WithError(err).WithField("channel", channel).WithField("to", msg.To).Warn("Failed to send notification")
	}
	return Delivery{Channel: channel, Recipient: msg.To, Err: err}
}
