package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/shule/core"
)

// maxInFlight caps concurrent calls to the SendGrid API; a reminder run can queue one message per guardian.
const maxInFlight = 4

type sendgridService struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
	category   string
	sandbox    bool
	slots      chan struct{}
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{
		client:     sendgrid.NewSendClient(conf.SendgridAPIKey),
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		category:   strings.ToLower(strings.ReplaceAll(conf.AppName, " ", "-")),
		sandbox:    conf.TestMode,
		slots:      make(chan struct{}, maxInFlight),
		logger:     logger,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *sendgridService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}

	svc.slots <- struct{}{}
	defer func() { <-svc.slots }()

	res, err := svc.client.Send(svc.build(*msg))
	switch {
	case err != nil:
		svc.logger.Error(fmt.Sprintf("sending %s email to %s: %v", svc.kind(*msg), joinAddresses(msg.To), err), err)
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sending %s email to %s: status %d: %s",
			svc.kind(*msg), joinAddresses(msg.To), res.StatusCode, res.Body))
	}
}

// kind names a message for logs and SendGrid categories.
func (svc *sendgridService) kind(msg core.EmailMessage) string {
	if msg.TemplateName == "" {
		return "plain"
	}
	return msg.TemplateName
}

// build converts msg to a SendGrid v3 payload. Receipts and reminders are
// told apart in SendGrid stats by their template category.
func (svc *sendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(toSGEmails(msg.To)...)
	if len(msg.Cc) > 0 {
		p.AddCCs(toSGEmails(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		p.AddBCCs(toSGEmails(msg.Bcc)...)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	if svc.category != "" {
		m.AddCategories(svc.category)
	}
	m.AddCategories(svc.kind(msg))
	m.SetCustomArg("template", svc.kind(msg))

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}

	if svc.sandbox {
		m.SetMailSettings(sgmail.NewMailSettings().SetSandboxMode(sgmail.NewSetting(true)))
	}
	return m
}

func toSGEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, addr := range addrs {
		emails = append(emails, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return emails
}
