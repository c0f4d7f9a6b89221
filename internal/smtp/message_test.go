package smtp

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressString(t *testing.T) {
	plain := Address{Address: "me@example.com"}
	if plain.String() != "me@example.com" {
		t.Errorf("String() = %q, want bare address with no display name", plain.String())
	}

	named := Address{Name: "Jane Doe", Address: "jane@example.com"}
	if got := named.String(); !strings.Contains(got, "jane@example.com") || !strings.Contains(got, "Jane Doe") {
		t.Errorf("String() = %q, want it to contain both name and address", got)
	}
}

func TestAllRecipientsCombinesToAndCcAndBcc(t *testing.T) {
	m := &ComposeMessage{
		To:  []Address{{Address: "a@example.com"}},
		Cc:  []Address{{Address: "b@example.com"}},
		Bcc: []Address{{Address: "c@example.com"}},
	}
	got := m.AllRecipients()
	want := []string{"a@example.com", "b@example.com", "c@example.com"}
	if len(got) != len(want) {
		t.Fatalf("AllRecipients() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AllRecipients()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestToRFC5322PlainTextMessage(t *testing.T) {
	m := &ComposeMessage{
		From:     Address{Address: "me@example.com"},
		To:       []Address{{Address: "dest@example.com"}},
		Subject:  "hello",
		TextBody: "hi there",
	}
	raw, messageID, err := m.ToRFC5322()
	if err != nil {
		t.Fatalf("ToRFC5322: %v", err)
	}
	if messageID == "" || !strings.HasPrefix(messageID, "<") {
		t.Errorf("messageID = %q, want an angle-bracketed Message-ID", messageID)
	}
	raws := string(raw)
	if !strings.Contains(raws, "From: me@example.com\r\n") {
		t.Error("expected a From header")
	}
	if !strings.Contains(raws, "To: dest@example.com\r\n") {
		t.Error("expected a To header")
	}
	if !strings.Contains(raws, "Message-ID: "+messageID) {
		t.Error("expected the returned Message-ID to also appear in the headers")
	}
	if !strings.Contains(raws, "Content-Type: text/plain; charset=utf-8\r\n") {
		t.Error("expected a plain-text Content-Type for a text-only body")
	}
}

func TestToRFC5322OmitsBccFromHeaders(t *testing.T) {
	m := &ComposeMessage{
		From: Address{Address: "me@example.com"},
		To:   []Address{{Address: "dest@example.com"}},
		Bcc:  []Address{{Address: "secret@example.com"}},
	}
	raw, _, err := m.ToRFC5322()
	if err != nil {
		t.Fatalf("ToRFC5322: %v", err)
	}
	if strings.Contains(string(raw), "secret@example.com") {
		t.Error("Bcc recipients must never appear in the serialized headers")
	}
}

func TestToRFC5322MultipartAlternativeForTextAndHTML(t *testing.T) {
	m := &ComposeMessage{
		From:     Address{Address: "me@example.com"},
		To:       []Address{{Address: "dest@example.com"}},
		TextBody: "plain version",
		HTMLBody: "<p>html version</p>",
	}
	raw, _, err := m.ToRFC5322()
	if err != nil {
		t.Fatalf("ToRFC5322: %v", err)
	}
	raws := string(raw)
	if !strings.Contains(raws, "multipart/alternative") {
		t.Error("expected a multipart/alternative Content-Type when both bodies are set")
	}
	if !strings.Contains(raws, "text/plain") || !strings.Contains(raws, "text/html") {
		t.Error("expected both a text/plain and text/html part")
	}
}

func TestToRFC5322MultipartMixedWithAttachment(t *testing.T) {
	m := &ComposeMessage{
		From:     Address{Address: "me@example.com"},
		To:       []Address{{Address: "dest@example.com"}},
		TextBody: "see attached",
		Attachments: []Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: bytes.Repeat([]byte("a"), 200)},
		},
	}
	raw, _, err := m.ToRFC5322()
	if err != nil {
		t.Fatalf("ToRFC5322: %v", err)
	}
	raws := string(raw)
	if !strings.Contains(raws, "multipart/mixed") {
		t.Error("expected multipart/mixed when attachments are present")
	}
	if !strings.Contains(raws, `filename="report.pdf"`) {
		t.Error("expected the attachment filename in Content-Disposition")
	}
	if !strings.Contains(raws, "Content-Transfer-Encoding: base64") {
		t.Error("expected the attachment to be base64-encoded")
	}
}

func TestToRFC5322DefaultsToEmptyPlainTextWithNoBody(t *testing.T) {
	m := &ComposeMessage{From: Address{Address: "me@example.com"}, To: []Address{{Address: "dest@example.com"}}}
	raw, _, err := m.ToRFC5322()
	if err != nil {
		t.Fatalf("ToRFC5322: %v", err)
	}
	if !strings.Contains(string(raw), "Content-Type: text/plain; charset=utf-8\r\n") {
		t.Error("expected a bare text/plain Content-Type when no body is set")
	}
}

func TestEncodeSubjectLeavesASCIIUnchanged(t *testing.T) {
	if got := encodeSubject("Hello World"); got != "Hello World" {
		t.Errorf("encodeSubject(ascii) = %q, want unchanged", got)
	}
}

func TestEncodeSubjectEncodesNonASCII(t *testing.T) {
	got := encodeSubject("Café")
	if got == "Café" {
		t.Error("expected non-ASCII subject to be MIME-encoded")
	}
	if !strings.HasPrefix(got, "=?utf-8?") {
		t.Errorf("encodeSubject(non-ascii) = %q, want a MIME encoded-word", got)
	}
}

func TestBase64LineWrapperWrapsAt76Chars(t *testing.T) {
	var buf bytes.Buffer
	w := &base64LineWrapper{Writer: &buf}
	if _, err := w.Write(bytes.Repeat([]byte("x"), 200)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\r\n") {
		if len(line) > 76 {
			t.Fatalf("line length %d exceeds 76 characters: %q", len(line), line)
		}
	}
}
