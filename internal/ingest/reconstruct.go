package ingest

import (
	"strings"
)

// ThreadSeparator joins the messages of one ticket
const ThreadSeparator = "\n\n---\n\n"

// DefaultSubject is used when a ticket header carries no subject
const DefaultSubject = "No Subject"

// Ticket is one support thread rebuilt from consecutive export rows
type Ticket struct {
	TicketID        string
	ConversationID  string
	ConversationURL string
	Subject         string
	CustomerEmail   string
	CustomerName    string
	CreationDate    string
	ClosedDate      string
	Assignee        string
	Labels          string
	Inbox           string
	Messages        []string
}

// MessageText returns the thread in original order
func (t Ticket) MessageText() string {
	return strings.Join(t.Messages, ThreadSeparator)
}

// Stats counts what reconstruction discarded
type Stats struct {
	Rows           int
	SpamTickets    int // Ticket headers rejected by the spam filter
	SystemMessages int // Messages rejected by the system-message filter
	EmptyTickets   int // Tickets left without any kept message
	OrphanRows     int // Continuation rows with no open ticket
}

// Reconstruct groups rows into tickets. Rows must be in export order: a row
// with a ticket id opens a ticket and rows without one continue it. Tickets
// that end with no kept message are dropped.
func Reconstruct(rows []RawRow) ([]Ticket, Stats) {
	stats := Stats{Rows: len(rows)}
	var (
		tickets []Ticket
		current *Ticket
	)

	flush := func() {
		if current == nil {
			return
		}
		if len(current.Messages) == 0 {
			stats.EmptyTickets++
		} else {
			tickets = append(tickets, *current)
		}
		current = nil
	}

	for _, row := range rows {
		ticketID := strings.TrimSpace(row.TicketID)

		if ticketID != "" {
			flush()
			if IsSpam(row) {
				stats.SpamTickets++
				continue
			}
			current = newTicket(ticketID, row)
		} else if current == nil {
			stats.OrphanRows++
			continue
		}

		if strings.TrimSpace(row.MessageText) == "" {
			continue
		}
		if IsSystemMessage(row) {
			stats.SystemMessages++
			continue
		}
		current.Messages = append(current.Messages, row.MessageText)
	}
	flush()

	return tickets, stats
}

func newTicket(ticketID string, row RawRow) *Ticket {
	t := &Ticket{
		TicketID:        ticketID,
		ConversationID:  row.ConversationID,
		ConversationURL: row.ConversationURL,
		Subject:         row.Subject,
		CustomerEmail:   row.CustomerEmail,
		CustomerName:    row.CustomerName,
		CreationDate:    row.CreationDate,
		ClosedDate:      row.ClosedDate,
		Assignee:        row.Assignee,
		Labels:          row.Labels,
		Inbox:           row.Inbox,
		Messages:        []string{},
	}
	if t.ConversationID == "" {
		t.ConversationID = ticketID
	}
	if t.Subject == "" {
		t.Subject = DefaultSubject
	}
	return t
}
