package channels

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/schoolbell-dev/schoolbell/internal/types"
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type EmailChannel struct {
	config EmailConfig
	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(config EmailConfig) *EmailChannel {
	return &EmailChannel{config: config, send: smtp.SendMail}
}

func (c *EmailChannel) Name() string {
	return types.ChannelEmail
}

var headerSanitizer = strings.NewReplacer("\r", "", "\n", "")

// sanitizeHeader strips CR/LF so a value cannot inject extra headers.
func sanitizeHeader(s string) string {
	return headerSanitizer.Replace(s)
}

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if c.config.Host == "" {
		return fmt.Errorf("SMTP is not configured")
	}

	if msg.Recipient.Email == "" {
		return fmt.Errorf("recipient %d has no email address", msg.Recipient.ID)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", sanitizeHeader(c.config.From))
	fmt.Fprintf(&body, "To: %s\r\n", sanitizeHeader(msg.Recipient.Email))
	fmt.Fprintf(&body, "Subject: [%s] %s\r\n", strings.ToUpper(sanitizeHeader(msg.Category)), sanitizeHeader(msg.Title))
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	body.WriteString(msg.Content)
	body.WriteString("\r\n")

	var auth smtp.Auth
	if c.config.Username != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	if err := c.send(addr, auth, c.config.From, []string{msg.Recipient.Email}, []byte(body.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}

	return nil
}
