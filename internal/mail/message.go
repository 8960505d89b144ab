package mail

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"
)

// attachmentData is one attachment with its bytes already read.
type attachmentData struct {
	Filename string
	MIMEType string
	Data     []byte
}

// buildMessage assembles a multipart/mixed MIME message: one text/plain part
// followed by one base64 part per attachment, in order. Pure, so tests can
// assert on the bytes without a server.
func buildMessage(from string, to []string, subject, body string, attachments []attachmentData, now time.Time) []byte {
	boundary := fmt.Sprintf("watchpot-%d", now.UnixNano())

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&sb, "Date: %s\r\n", now.Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&sb, "Content-Type: multipart/mixed; boundary=%q\r\n", boundary)
	sb.WriteString("\r\n")

	fmt.Fprintf(&sb, "--%s\r\n", boundary)
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	for _, att := range attachments {
		fmt.Fprintf(&sb, "--%s\r\n", boundary)
		fmt.Fprintf(&sb, "Content-Type: %s\r\n", att.MIMEType)
		sb.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&sb, "Content-Disposition: attachment; filename=%q\r\n", att.Filename)
		sb.WriteString("\r\n")
		writeBase64(&sb, att.Data)
	}

	fmt.Fprintf(&sb, "--%s--\r\n", boundary)
	return []byte(sb.String())
}

// writeBase64 encodes data in 76-column lines per RFC 2045.
func writeBase64(sb *strings.Builder, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		sb.WriteString(encoded[:76])
		sb.WriteString("\r\n")
		encoded = encoded[76:]
	}
	if len(encoded) > 0 {
		sb.WriteString(encoded)
		sb.WriteString("\r\n")
	}
}
