// Package smtp implements RFC 5321 message submission: STARTTLS on 587,
// implicit TLS on 465, password or XOAUTH2 authentication, and RFC 5322
// message composition for the outbox.
package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is an RFC 5322 mailbox with optional display name.
type Address struct {
	Name    string
	Address string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", a.Name), a.Address)
}

// Attachment is one MIME part to attach to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
	ContentID   string
	Inline      bool
}

// ComposeMessage is an outbound message before RFC 5322 serialization.
type ComposeMessage struct {
	From    Address
	To      []Address
	Cc      []Address
	Bcc     []Address
	ReplyTo *Address
	Subject string

	TextBody string
	HTMLBody string

	Attachments []Attachment

	InReplyTo  string
	References []string
}

// AllRecipients returns every envelope recipient: To, Cc and Bcc.
func (m *ComposeMessage) AllRecipients() []string {
	var recipients []string
	for _, addr := range m.To {
		recipients = append(recipients, addr.Address)
	}
	for _, addr := range m.Cc {
		recipients = append(recipients, addr.Address)
	}
	for _, addr := range m.Bcc {
		recipients = append(recipients, addr.Address)
	}
	return recipients
}

// ToRFC5322 serializes m into a complete message, including headers, ready
// for SMTP DATA or IMAP APPEND. The returned Message-ID is also recorded
// in the headers so the caller can persist it alongside the outbox entry.
func (m *ComposeMessage) ToRFC5322() (raw []byte, messageID string, err error) {
	var buf bytes.Buffer

	messageID = fmt.Sprintf("<%s@mailcore>", uuid.New().String())

	writeHeader(&buf, "From", m.From.String())
	writeHeader(&buf, "To", formatAddresses(m.To))
	if len(m.Cc) > 0 {
		writeHeader(&buf, "Cc", formatAddresses(m.Cc))
	}
	// Bcc is deliberately never written to headers; SMTP envelope recipients
	// carry it instead.
	if m.ReplyTo != nil {
		writeHeader(&buf, "Reply-To", m.ReplyTo.String())
	}
	writeHeader(&buf, "Subject", encodeSubject(m.Subject))
	writeHeader(&buf, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID)
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "User-Agent", "mailcore")

	if m.InReplyTo != "" {
		writeHeader(&buf, "In-Reply-To", m.InReplyTo)
	}
	if len(m.References) > 0 {
		writeHeader(&buf, "References", strings.Join(m.References, " "))
	}

	hasHTML := m.HTMLBody != ""
	hasText := m.TextBody != ""
	hasAttachments := len(m.Attachments) > 0

	var inlineAttachments, regularAttachments []Attachment
	for _, att := range m.Attachments {
		if att.Inline {
			inlineAttachments = append(inlineAttachments, att)
		} else {
			regularAttachments = append(regularAttachments, att)
		}
	}

	switch {
	case hasAttachments && (hasHTML || hasText):
		if err := writeMultipartMixed(&buf, m, regularAttachments, inlineAttachments); err != nil {
			return nil, "", err
		}
	case hasHTML && hasText:
		if err := writeMultipartAlternative(&buf, m.TextBody, m.HTMLBody); err != nil {
			return nil, "", err
		}
	case hasHTML:
		writeHeader(&buf, "Content-Type", "text/html; charset=utf-8")
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		writeQuotedPrintable(&buf, m.HTMLBody)
	case hasText:
		writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		writeQuotedPrintable(&buf, m.TextBody)
	default:
		writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
		buf.WriteString("\r\n")
	}

	return buf.Bytes(), messageID, nil
}

func writeHeader(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%s: %s\r\n", name, value)
}

func formatAddresses(addrs []Address) string {
	parts := make([]string, len(addrs))
	for i, addr := range addrs {
		parts[i] = addr.String()
	}
	return strings.Join(parts, ", ")
}

func encodeSubject(subject string) string {
	for _, r := range subject {
		if r > 127 {
			return mime.QEncoding.Encode("utf-8", subject)
		}
	}
	return subject
}

func writeQuotedPrintable(w io.Writer, content string) {
	qpWriter := quotedprintable.NewWriter(w)
	qpWriter.Write([]byte(content))
	qpWriter.Close()
}

func writeMultipartAlternative(w *bytes.Buffer, textBody, htmlBody string) error {
	mpWriter := multipart.NewWriter(w)
	boundary := mpWriter.Boundary()

	writeHeader(w, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
	w.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	textPart, err := mpWriter.CreatePart(textHeader)
	if err != nil {
		return err
	}
	writeQuotedPrintable(textPart, textBody)

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
	htmlHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	htmlPart, err := mpWriter.CreatePart(htmlHeader)
	if err != nil {
		return err
	}
	writeQuotedPrintable(htmlPart, htmlBody)

	return mpWriter.Close()
}

func writeMultipartMixed(w *bytes.Buffer, m *ComposeMessage, attachments, inlineAttachments []Attachment) error {
	mpWriter := multipart.NewWriter(w)
	boundary := mpWriter.Boundary()

	writeHeader(w, "Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", boundary))
	w.WriteString("\r\n")

	hasHTML := m.HTMLBody != ""
	hasText := m.TextBody != ""

	switch {
	case hasHTML && hasText:
		altBoundary := uuid.New().String()
		altHeader := textproto.MIMEHeader{}
		altHeader.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", altBoundary))

		bodyPart, err := mpWriter.CreatePart(altHeader)
		if err != nil {
			return err
		}
		altWriter := multipart.NewWriter(bodyPart)
		if err := altWriter.SetBoundary(altBoundary); err != nil {
			return err
		}

		textHeader := textproto.MIMEHeader{}
		textHeader.Set("Content-Type", "text/plain; charset=utf-8")
		textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
		textPart, err := altWriter.CreatePart(textHeader)
		if err != nil {
			return err
		}
		writeQuotedPrintable(textPart, m.TextBody)

		if len(inlineAttachments) > 0 {
			if err := writeRelatedPart(altWriter, m.HTMLBody, inlineAttachments); err != nil {
				return err
			}
		} else {
			htmlHeader := textproto.MIMEHeader{}
			htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
			htmlHeader.Set("Content-Transfer-Encoding", "quoted-printable")
			htmlPart, err := altWriter.CreatePart(htmlHeader)
			if err != nil {
				return err
			}
			writeQuotedPrintable(htmlPart, m.HTMLBody)
		}
		if err := altWriter.Close(); err != nil {
			return err
		}
	case hasHTML:
		if len(inlineAttachments) > 0 {
			if err := writeRelatedPart(mpWriter, m.HTMLBody, inlineAttachments); err != nil {
				return err
			}
		} else {
			htmlHeader := textproto.MIMEHeader{}
			htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
			htmlHeader.Set("Content-Transfer-Encoding", "quoted-printable")
			bodyPart, err := mpWriter.CreatePart(htmlHeader)
			if err != nil {
				return err
			}
			writeQuotedPrintable(bodyPart, m.HTMLBody)
		}
	case hasText:
		textHeader := textproto.MIMEHeader{}
		textHeader.Set("Content-Type", "text/plain; charset=utf-8")
		textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
		bodyPart, err := mpWriter.CreatePart(textHeader)
		if err != nil {
			return err
		}
		writeQuotedPrintable(bodyPart, m.TextBody)
	}

	for _, att := range attachments {
		if err := writeAttachment(mpWriter, att); err != nil {
			return err
		}
	}

	return mpWriter.Close()
}

func writeRelatedPart(parentWriter *multipart.Writer, htmlBody string, inlineAttachments []Attachment) error {
	relBoundary := uuid.New().String()
	relHeader := textproto.MIMEHeader{}
	relHeader.Set("Content-Type", fmt.Sprintf("multipart/related; boundary=%q", relBoundary))

	relPart, err := parentWriter.CreatePart(relHeader)
	if err != nil {
		return err
	}
	relWriter := multipart.NewWriter(relPart)
	if err := relWriter.SetBoundary(relBoundary); err != nil {
		return err
	}

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
	htmlHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	htmlPart, err := relWriter.CreatePart(htmlHeader)
	if err != nil {
		return err
	}
	writeQuotedPrintable(htmlPart, htmlBody)

	for _, att := range inlineAttachments {
		if err := writeInlineAttachment(relWriter, att); err != nil {
			return err
		}
	}

	return relWriter.Close()
}

func writeAttachment(w *multipart.Writer, att Attachment) error {
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	encoder := base64.NewEncoder(base64.StdEncoding, &base64LineWrapper{Writer: part})
	if _, err := encoder.Write(att.Content); err != nil {
		return err
	}
	return encoder.Close()
}

func writeInlineAttachment(w *multipart.Writer, att Attachment) error {
	contentType := att.ContentType
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(att.Filename)) {
		case ".png":
			contentType = "image/png"
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".gif":
			contentType = "image/gif"
		case ".webp":
			contentType = "image/webp"
		default:
			contentType = "application/octet-stream"
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", att.Filename))
	if att.ContentID != "" {
		header.Set("Content-ID", fmt.Sprintf("<%s>", att.ContentID))
	}

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	encoder := base64.NewEncoder(base64.StdEncoding, &base64LineWrapper{Writer: part})
	if _, err := encoder.Write(att.Content); err != nil {
		return err
	}
	return encoder.Close()
}

// base64LineWrapper wraps base64 output at 76 characters per line, per
// RFC 2045.
type base64LineWrapper struct {
	Writer  io.Writer
	lineLen int
}

func (w *base64LineWrapper) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		remaining := 76 - w.lineLen
		if remaining <= 0 {
			if _, err := w.Writer.Write([]byte("\r\n")); err != nil {
				return n, err
			}
			w.lineLen = 0
			remaining = 76
		}
		toWrite := len(p)
		if toWrite > remaining {
			toWrite = remaining
		}
		written, err := w.Writer.Write(p[:toWrite])
		n += written
		w.lineLen += written
		if err != nil {
			return n, err
		}
		p = p[toWrite:]
	}
	return n, nil
}
