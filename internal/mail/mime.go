package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"time"
)

// PayloadFilename is the attachment name carrying the structured state.
const PayloadFilename = "protocol.json"

// buildMessage assembles an RFC 5322 message. With a payload it becomes
// multipart/mixed: a text/plain part for humans and a protocol.json
// attachment for compliant agents; without one it is a plain text message.
func buildMessage(from string, to []string, subject, body string, payload []byte, messageID string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", messageID)
	buf.WriteString("MIME-Version: 1.0\r\n")

	if payload == nil {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(body)
		buf.WriteString("\r\n")
		return buf.Bytes()
	}

	w := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", w.Boundary())

	textHeader := make(map[string][]string)
	textHeader["Content-Type"] = []string{"text/plain; charset=utf-8"}
	part, _ := w.CreatePart(textHeader)
	io.WriteString(part, body)

	jsonHeader := make(map[string][]string)
	jsonHeader["Content-Type"] = []string{"application/json"}
	jsonHeader["Content-Transfer-Encoding"] = []string{"base64"}
	jsonHeader["Content-Disposition"] = []string{fmt.Sprintf("attachment; filename=%q", PayloadFilename)}
	part, _ = w.CreatePart(jsonHeader)
	io.WriteString(part, base64.StdEncoding.EncodeToString(payload))

	w.Close()
	return buf.Bytes()
}

// protocolMessageID formats a deterministic Message-ID for one outbound
// protocol message.
func protocolMessageID(correlation string, version int, domain string) string {
	return fmt.Sprintf("<aimp-%s-v%d-%d@%s>", correlation, version, time.Now().UnixNano(), domain)
}

// parseMessage decodes a raw RFC 5322 message into an Inbound, extracting
// the protocol.json attachment when one exists.
func parseMessage(raw io.Reader) (Inbound, error) {
	msg, err := netmail.ReadMessage(raw)
	if err != nil {
		return Inbound{}, fmt.Errorf("parse message: %w", err)
	}

	in := Inbound{
		MessageID: strings.Trim(msg.Header.Get("Message-Id"), "<>"),
		Subject:   decodeSubject(msg.Header.Get("Subject")),
	}
	if addr, err := netmail.ParseAddress(msg.Header.Get("From")); err == nil {
		in.Sender = strings.ToLower(addr.Address)
		in.SenderName = addr.Name
	} else {
		in.Sender = strings.ToLower(strings.TrimSpace(msg.Header.Get("From")))
	}
	if date, err := msg.Header.Date(); err == nil {
		in.Date = date
	} else {
		in.Date = time.Now().UTC()
	}
	if corr, kind, ok := ParseTag(in.Subject); ok {
		in.Correlation = corr
		in.Kind = kind
	}

	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return Inbound{}, err
		}
		in.Body = body
		return in, nil
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Inbound{}, fmt.Errorf("parse message part: %w", err)
		}
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		filename := part.FileName()
		content, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return Inbound{}, err
		}
		switch {
		case filename == PayloadFilename || partType == "application/json":
			in.Payload = []byte(content)
		case partType == "text/plain" && in.Body == "":
			in.Body = content
		}
	}
	return in, nil
}

func decodeSubject(s string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

func decodeBody(r io.Reader, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, newWhitespaceStripper(r))
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode message body: %w", err)
	}
	return string(data), nil
}

// whitespaceStripper drops CR/LF so base64 bodies with line wrapping decode
// cleanly.
type whitespaceStripper struct {
	r io.Reader
}

func newWhitespaceStripper(r io.Reader) io.Reader {
	return &whitespaceStripper{r: r}
}

func (w *whitespaceStripper) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	kept := 0
	for i := 0; i < n; i++ {
		if p[i] == '\r' || p[i] == '\n' {
			continue
		}
		p[kept] = p[i]
		kept++
	}
	if kept == 0 && err == nil && n > 0 {
		return w.Read(p)
	}
	return kept, err
}
