// Package platforms posts formatted messages to chat webhooks.
package platforms

import "context"

// Message is one lobby notification before a webhook renders it.
type Message struct {
	Title, Description string
	// Color is 0xRRGGBB. Zero leaves the platform default.
	Color int
	// Timestamp is RFC 3339.
	Timestamp string
	// Footer names the sending server.
	Footer string
	Fields []Field
}

// Field is a short labelled value. Inline fields may share a row.
type Field struct {
	Name, Value string
	Inline      bool
}

// Adapter delivers a Message to one webhook endpoint. The secret is only
// used by platforms that sign requests.
type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}
