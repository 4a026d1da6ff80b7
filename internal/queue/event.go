// Package queue moves outbound mail through RabbitMQ so that request handlers
// never wait on SMTP.
package queue

import (
	"time"

	"github.com/iliyamo/account-service/internal/mail"
)

// MailRequested is published for every email the API wants delivered.
type MailRequested struct {
	ID          string       `json:"id"`
	Message     mail.Message `json:"message"`
	RequestedAt time.Time    `json:"requested_at"`
}
