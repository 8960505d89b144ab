package mail

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

var messageTime = time.Date(2025, time.March, 14, 18, 0, 0, 0, time.UTC)

func TestBuildMessage_Headers(t *testing.T) {
	raw := string(buildMessage(
		"pot@example.com",
		[]string{"a@example.com", "b@example.com"},
		"WatchPot report 2025-03-14 (2 photos)",
		"body text\n",
		nil,
		messageTime,
	))

	for _, want := range []string{
		"From: pot@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: WatchPot report 2025-03-14 (2 photos)\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: multipart/mixed; boundary=",
		"Content-Type: text/plain; charset=utf-8\r\n",
		"body text\n",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestBuildMessage_AttachmentsInOrder(t *testing.T) {
	gif := []byte("GIF89a-not-really")
	jpg := bytes.Repeat([]byte{0xFF, 0xD8}, 100)

	raw := string(buildMessage("pot@example.com", []string{"a@example.com"}, "s", "b",
		[]attachmentData{
			{Filename: "watchpot_20250314_summary.gif", MIMEType: "image/gif", Data: gif},
			{Filename: "watchpot_20250314_1600.jpg", MIMEType: "image/jpeg", Data: jpg},
		}, messageTime))

	gifIdx := strings.Index(raw, `filename="watchpot_20250314_summary.gif"`)
	jpgIdx := strings.Index(raw, `filename="watchpot_20250314_1600.jpg"`)
	if gifIdx < 0 || jpgIdx < 0 {
		t.Fatalf("attachment headers missing:\n%s", raw)
	}
	if gifIdx > jpgIdx {
		t.Error("attachments out of order")
	}
	if !strings.Contains(raw, "Content-Type: image/gif\r\n") {
		t.Error("gif part missing its content type")
	}
	if strings.Count(raw, "Content-Transfer-Encoding: base64") != 2 {
		t.Error("each attachment should be base64 encoded")
	}
}

func TestBuildMessage_Base64RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 500) // forces line wrapping

	raw := string(buildMessage("pot@example.com", []string{"a@example.com"}, "s", "b",
		[]attachmentData{{Filename: "photo.jpg", MIMEType: "image/jpeg", Data: data}}, messageTime))

	// Pull the base64 payload: everything between the attachment's blank
	// line and the closing boundary.
	start := strings.Index(raw, "Content-Disposition: attachment")
	if start < 0 {
		t.Fatal("attachment part missing")
	}
	payload := raw[start:]
	payload = payload[strings.Index(payload, "\r\n\r\n")+4:]
	payload = payload[:strings.Index(payload, "--watchpot-")]

	for _, line := range strings.Split(strings.TrimSpace(payload), "\r\n") {
		if len(line) > 76 {
			t.Errorf("base64 line exceeds 76 columns: %d", len(line))
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload, "\r\n", ""))
	if err != nil {
		t.Fatalf("base64 decode failed: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("attachment bytes did not round-trip")
	}
}

func TestBuildMessage_ClosingBoundary(t *testing.T) {
	raw := string(buildMessage("pot@example.com", []string{"a@example.com"}, "s", "b", nil, messageTime))

	if !strings.HasSuffix(raw, "--\r\n") {
		t.Errorf("message should end with the closing boundary, got %q", raw[len(raw)-40:])
	}
}
