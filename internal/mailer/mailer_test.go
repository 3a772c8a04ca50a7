package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceEmail() Email {
	return Email{
		FromName: "CCTS",
		From:     "no-reply@ccts.sn",
		To:       []string{"awa@example.sn", "contact@ccts.sn"},
		Subject:  "Facture Orange Money - REF-42-1709647629",
		HTMLBody: "<p>Bonjour Awa,</p>",
		Attachments: []Attachment{{
			Filename:    "facture_orange_OM-1_20240305_140709.pdf",
			ContentType: "application/pdf",
			Data:        bytes.Repeat([]byte("%PDF"), 40),
		}},
	}
}

func TestBuildMIMEMessage_WithAttachment(t *testing.T) {
	raw, err := buildMIMEMessage(invoiceEmail(), "ccts.sn")
	require.NoError(t, err)

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "awa@example.sn, contact@ccts.sn", msg.Header.Get("To"))

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Facture Orange Money - REF-42-1709647629", subject)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	body, err := mr.NextPart()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body.Header.Get("Content-Type"), "multipart/alternative"))

	att, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "facture_orange_OM-1_20240305_140709.pdf", att.FileName())
	encoded, err := io.ReadAll(att)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("%PDF"), 40), decoded)

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBuildMIMEMessage_Validation(t *testing.T) {
	e := invoiceEmail()
	e.To = nil
	_, err := buildMIMEMessage(e, "ccts.sn")
	assert.ErrorContains(t, err, "recipient")

	e = invoiceEmail()
	e.HTMLBody = ""
	_, err = buildMIMEMessage(e, "ccts.sn")
	assert.ErrorContains(t, err, "htmlBody")
}

func TestMock(t *testing.T) {
	m := &Mock{}
	require.NoError(t, m.Send(context.Background(), invoiceEmail()))
	assert.Equal(t, 1, m.Count())

	m.Err = errors.New("smtp down")
	assert.Error(t, m.Send(context.Background(), invoiceEmail()))
	assert.Equal(t, 1, m.Count())
}
