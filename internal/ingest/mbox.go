package ingest

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// AgentSenderType marks mailbox messages written by the store itself
const AgentSenderType = "Agent"

// mailMessage is one parsed message from a mailbox
type mailMessage struct {
	messageID  string
	inReplyTo  string
	references string
	subject    string
	fromName   string
	fromAddr   string
	date       time.Time
	body       string
}

// ParseMBOX reads a mailbox into export-shaped rows: each thread becomes a
// header row carrying the ticket id followed by continuation rows. Messages
// from any of ownDomains are marked as agent-authored so the system filter
// drops them.
func ParseMBOX(r io.Reader, ownDomains []string) ([]RawRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var (
		messages []mailMessage
		current  bytes.Buffer
	)

	parseCurrent := func() {
		if current.Len() == 0 {
			return
		}
		if msg, err := parseMailMessage(&current); err == nil {
			messages = append(messages, msg)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		// Each message starts with a "From " separator line
		if strings.HasPrefix(line, "From ") {
			parseCurrent()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading mbox: %w", err)
	}
	parseCurrent()

	return threadRows(messages, ownDomains), nil
}

// threadRows orders threads by first appearance and messages by date
func threadRows(messages []mailMessage, ownDomains []string) []RawRow {
	var order []string
	threads := map[string][]mailMessage{}
	for _, m := range messages {
		id := threadID(m)
		if _, ok := threads[id]; !ok {
			order = append(order, id)
		}
		threads[id] = append(threads[id], m)
	}

	var rows []RawRow
	for _, id := range order {
		thread := threads[id]
		sort.SliceStable(thread, func(i, j int) bool { return thread[i].date.Before(thread[j].date) })

		customer := thread[0]
		for _, m := range thread {
			if !isOwnAddress(m.fromAddr, ownDomains) {
				customer = m
				break
			}
		}

		for i, m := range thread {
			row := RawRow{
				MessageText: m.body,
				SenderName:  m.fromName,
				SenderType:  ContactSenderType,
			}
			if isOwnAddress(m.fromAddr, ownDomains) {
				row.SenderType = AgentSenderType
			}
			if i == 0 {
				row.TicketID = id
				row.ConversationID = id
				row.Subject = thread[0].subject
				row.CustomerEmail = customer.fromAddr
				row.CustomerName = customer.fromName
				row.CreationDate = thread[0].date.Format(time.RFC3339)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func isOwnAddress(addr string, ownDomains []string) bool {
	addr = strings.ToLower(addr)
	for _, d := range ownDomains {
		if d != "" && strings.HasSuffix(addr, "@"+strings.ToLower(strings.TrimPrefix(d, "@"))) {
			return true
		}
	}
	return false
}

func parseMailMessage(r io.Reader) (mailMessage, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return mailMessage{}, fmt.Errorf("failed to read email message: %w", err)
	}
	header := msg.Header

	m := mailMessage{
		messageID:  header.Get("Message-ID"),
		inReplyTo:  header.Get("In-Reply-To"),
		references: header.Get("References"),
		subject:    decodeHeader(header.Get("Subject")),
	}

	if addr, err := mail.ParseAddress(header.Get("From")); err == nil {
		m.fromName = addr.Name
		m.fromAddr = addr.Address
	} else {
		m.fromAddr = strings.TrimSpace(header.Get("From"))
	}

	if d, err := mail.ParseDate(header.Get("Date")); err == nil {
		m.date = d.UTC()
	}

	body, err := extractBody(msg)
	if err != nil {
		return mailMessage{}, fmt.Errorf("failed to extract body: %w", err)
	}
	m.body = strings.TrimSpace(body)
	return m, nil
}

// threadID takes the root of References, then In-Reply-To, then the message's own id
func threadID(m mailMessage) string {
	if refs := strings.Fields(m.references); len(refs) > 0 {
		return cleanMessageID(refs[0])
	}
	if m.inReplyTo != "" {
		return cleanMessageID(m.inReplyTo)
	}
	return cleanMessageID(m.messageID)
}

func cleanMessageID(id string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(id), "<"), ">")
}

func extractBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if contentType == "" || err != nil {
		body, err := io.ReadAll(msg.Body)
		return string(body), err
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipartBody(msg.Body, params["boundary"])
	}
	body, err := decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(mediaType, "text/html") {
		return cleanHTML(body), nil
	}
	return body, nil
}

func extractMultipartBody(body io.Reader, boundary string) (string, error) {
	mr := multipart.NewReader(body, boundary)
	var textParts, htmlParts []string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		mediaType, params, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			if nested, err := extractMultipartBody(part, params["boundary"]); err == nil {
				textParts = append(textParts, nested)
			}
		case strings.HasPrefix(mediaType, "text/plain"):
			if content, err := decodePart(part, part.Header.Get("Content-Transfer-Encoding")); err == nil {
				textParts = append(textParts, content)
			}
		case strings.HasPrefix(mediaType, "text/html"):
			if content, err := decodePart(part, part.Header.Get("Content-Transfer-Encoding")); err == nil {
				htmlParts = append(htmlParts, content)
			}
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n\n"), nil
	}
	if len(htmlParts) > 0 {
		return cleanHTML(strings.Join(htmlParts, "\n\n")), nil
	}
	return "", nil
}

func decodePart(body io.Reader, transferEncoding string) (string, error) {
	reader := body
	switch strings.ToLower(transferEncoding) {
	case "quoted-printable":
		reader = quotedprintable.NewReader(body)
	case "base64":
		reader = base64.NewDecoder(base64.StdEncoding, body)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

var htmlEntities = strings.NewReplacer(
	"&nbsp;", " ",
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
	"</p>", "\n\n",
	"</div>", "\n",
)

// cleanHTML strips tags for mail that only carries an HTML part
func cleanHTML(html string) string {
	html = removeTagsWithContent(html, "script")
	html = removeTagsWithContent(html, "style")
	html = htmlEntities.Replace(html)

	var result strings.Builder
	inTag := false
	for _, char := range html {
		switch {
		case char == '<':
			inTag = true
		case char == '>':
			inTag = false
		case !inTag:
			result.WriteRune(char)
		}
	}

	text := strings.TrimSpace(result.String())
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}

func removeTagsWithContent(html, tag string) string {
	openTag := "<" + tag
	closeTag := "</" + tag + ">"
	for {
		lower := strings.ToLower(html)
		start := strings.Index(lower, openTag)
		if start == -1 {
			return html
		}
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			return html
		}
		html = html[:start] + html[start+end+len(closeTag):]
	}
}

func decodeHeader(header string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}
