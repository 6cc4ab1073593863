package emailsvc

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestSendgridService_build(t *testing.T) {
	conf := core.NewTestConfig()
	conf.AppName = "Shule Test"
	conf.TestMode = true
	svc := NewSendgridService(conf, core.NewNoopLogger()).(*sendgridService)

	guardian := mail.Address{Name: "Wanjiru", Address: "wanjiru@example.com"}
	bursar := mail.Address{Address: "bursar@example.com"}

	tests := []struct {
		name           string
		msg            core.EmailMessage
		wantCategories []string
		wantContents   int
		wantCc         int
	}{
		{
			name: "templated receipt",
			msg: core.EmailMessage{
				To:           []mail.Address{guardian},
				Cc:           []mail.Address{bursar},
				Subject:      "Payment receipt",
				TemplateName: "fee_receipt",
				TextContent:  "Received 400.00",
				HTMLContent:  "<p>Received 400.00</p>",
			},
			wantCategories: []string{"shule-test", "fee_receipt"},
			wantContents:   2,
			wantCc:         1,
		},
		{
			name: "plain text",
			msg: core.EmailMessage{
				To:          []mail.Address{guardian},
				Subject:     "Hello",
				TextContent: "hello",
			},
			wantCategories: []string{"shule-test", "plain"},
			wantContents:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := svc.build(tt.msg)

			require.Len(t, m.Personalizations, 1)
			p := m.Personalizations[0]
			assert.Equal(t, "[Shule Test] "+tt.msg.Subject, p.Subject)
			require.Len(t, p.To, 1)
			assert.Equal(t, guardian.Address, p.To[0].Address)
			assert.Len(t, p.CC, tt.wantCc)

			assert.Equal(t, tt.wantCategories, m.Categories)
			assert.Equal(t, tt.wantCategories[1], m.CustomArgs["template"])
			assert.Len(t, m.Content, tt.wantContents)
			assert.Equal(t, "text/plain", m.Content[0].Type)

			require.NotNil(t, m.MailSettings)
			require.NotNil(t, m.MailSettings.SandboxMode)
			assert.True(t, *m.MailSettings.SandboxMode.Enable)
		})
	}
}

func TestSendgridService_buildAttachment(t *testing.T) {
	conf := core.NewTestConfig()
	conf.TestMode = false
	svc := NewSendgridService(conf, core.NewNoopLogger()).(*sendgridService)

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "wanjiru@example.com"}},
		Subject:     "Statement",
		TextContent: "see attached",
	}
	require.NoError(t, msg.Attach(bytes.NewBufferString("a,b\n1,2\n"), "statement.csv", "text/csv"))

	m := svc.build(msg)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "statement.csv", m.Attachments[0].Filename)
	assert.Equal(t, "attachment", m.Attachments[0].Disposition)
	assert.NotEmpty(t, m.Attachments[0].Content)
	assert.Nil(t, m.MailSettings)
}
