// Package mailer отправляет письма через настроенный SMTP-шлюз.
package mailer

import (
	"errors"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured возвращается при попытке отправки без настроенного SMTP.
var ErrNotConfigured = errors.New("smtp relay not configured")

// Client инкапсулирует доставку почты через SMTP с аутентификацией и STARTTLS.
type Client struct {
	dialer *gomail.Dialer
	sender string
}

// NewClient создаёт почтовый клиент. Возвращает nil, если шлюз не настроен:
// nil-клиент безопасен и сообщает ErrNotConfigured при отправке.
func NewClient(host string, port int, username, password, sender string) *Client {
	if host == "" || port == 0 || sender == "" {
		return nil
	}
	return &Client{
		dialer: gomail.NewDialer(host, port, username, password),
		sender: sender,
	}
}

// Send отправляет письмо с текстовым телом на указанный адрес.
func (c *Client) Send(to, subject, body string) error {
	if c == nil {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.sender)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	return c.dialer.DialAndSend(m)
}
