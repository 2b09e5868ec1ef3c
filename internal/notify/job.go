// Package notify delivers offer letters. The engine hands each new offer to
// a Dispatcher, which queues a Job on a Redis list; a Worker pops jobs,
// renders the PDF letter and mails it with the candidate's decision link.
// A popped job sits on a processing list until it is sent, requeued or
// buried, so a worker that dies mid-delivery loses nothing. Jobs that keep
// failing land on a dead-letter list until redriven.
package notify

import (
	"net/url"
	"strings"
	"time"
)

// Redis keys.
const (
	QueueKey      = "offers:letters"
	ProcessingKey = "offers:letters:processing"
	DeadLetterKey = "offers:letters:dead"
	PoisonKey     = "offers:letters:poison"
)

// Job is one queued offer letter.
type Job struct {
	OfferID       int64     `json:"offerId"`
	CandidateName string    `json:"candidateName"`
	Email         string    `json:"email"`
	Position      string    `json:"position"`
	Salary        string    `json:"salary"`
	Link          string    `json:"link"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"lastError,omitempty"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`

	// raw is the payload as popped, used to remove it from the processing list.
	raw string
}

// OfferLink is the candidate's decision page for token.
func OfferLink(hostURL, token string) string {
	return strings.TrimRight(hostURL, "/") + "/offer.html?token=" + url.QueryEscape(token)
}
