// Package ingest turns a support-ticket export into reconstructed tickets.
// Every function here is pure: malformed input is dropped, never raised.
package ingest

import (
	"strings"
)

// RawRow is one export record with canonical field names
type RawRow struct {
	TicketID        string
	ConversationID  string
	ConversationURL string
	Subject         string
	CustomerEmail   string
	CustomerName    string
	MessageText     string
	Labels          string
	Inbox           string
	CreationDate    string
	ClosedDate      string
	Assignee        string
	SenderType      string
	SenderName      string
}

type fieldAlias struct {
	keys []string
	set  func(r *RawRow, v string)
}

// aliases maps each canonical field to the column names seen in exports.
// The first key holding a non-empty value wins.
var aliases = []fieldAlias{
	{[]string{"Ticket id", "Ticket ID", "ticketId", "ticket_id"}, func(r *RawRow, v string) { r.TicketID = v }},
	{[]string{"Conversation id", "Conversation ID", "conversationId", "conversation_id"}, func(r *RawRow, v string) { r.ConversationID = v }},
	{[]string{"Conversation url", "Conversation URL", "conversationUrl", "conversation_url"}, func(r *RawRow, v string) { r.ConversationURL = v }},
	{[]string{"Subject", "subject"}, func(r *RawRow, v string) { r.Subject = v }},
	{[]string{"Customer email", "Customer Email", "customerEmail", "customer_email"}, func(r *RawRow, v string) { r.CustomerEmail = v }},
	{[]string{"Customer name", "Customer Name", "customerName", "customer_name"}, func(r *RawRow, v string) { r.CustomerName = v }},
	{[]string{"Message text", "Message Text", "messageText", "message_text"}, func(r *RawRow, v string) { r.MessageText = v }},
	{[]string{"Labels", "labels"}, func(r *RawRow, v string) { r.Labels = v }},
	{[]string{"Inbox", "inbox"}, func(r *RawRow, v string) { r.Inbox = v }},
	{[]string{"Creation date", "Creation Date", "creationDate", "creation_date"}, func(r *RawRow, v string) { r.CreationDate = v }},
	{[]string{"Closed date", "Closed Date", "closedDate", "closed_date"}, func(r *RawRow, v string) { r.ClosedDate = v }},
	{[]string{"Assignee", "assignee"}, func(r *RawRow, v string) { r.Assignee = v }},
	{[]string{"Sender type", "Sender Type", "senderType", "sender_type"}, func(r *RawRow, v string) { r.SenderType = v }},
	{[]string{"Sender name", "Sender Name", "senderName", "sender_name"}, func(r *RawRow, v string) { r.SenderName = v }},
}

// NormalizeRow resolves one header-keyed record. Missing columns become "".
func NormalizeRow(record map[string]string) RawRow {
	var row RawRow
	for _, a := range aliases {
		for _, key := range a.keys {
			if v := record[key]; v != "" {
				a.set(&row, v)
				break
			}
		}
	}
	return row
}

// Normalize resolves every record, preserving order
func Normalize(records []map[string]string) []RawRow {
	rows := make([]RawRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, NormalizeRow(record))
	}
	return rows
}

// SplitLabels turns a comma-separated label cell into trimmed labels
func SplitLabels(labels string) []string {
	out := []string{}
	for _, l := range strings.Split(labels, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
