package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	testutil "github.com/trezcool/shule/tests"
)

func TestService_SendReceipt(t *testing.T) {
	f := newFixture(t)
	core.ParseEmailTemplates(f.conf, core.NewNoopLogger())
	noEmail := testutil.CreateStudent(t, f.schools, "ADM-002", "Baraka Otieno", f.class)

	tuition := f.charge(t, "500", "200")
	lunch := f.charge(t, "80", "0")
	orphan := testutil.CreateCharge(t, f.repo, noEmail, "Tuition", "500", "0", testutil.Date(2021, time.March, 31))

	req := payment(line(tuition.ID, "300"), line(lunch.ID, "30"), line(orphan.ID, "50"), line(lunch.ID, "999"))
	req.TransactionRef = "RCPT-7"
	res, err := f.svc.ApplyPayment(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 3)

	sent, err := f.svc.SendReceipt(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := f.mail.Sent()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	require.Len(t, msg.To, 1)
	assert.Equal(t, "parent@example.com", msg.To[0].Address)
	assert.Equal(t, "Payment receipt for Amani Juma", msg.Subject)
	assert.Contains(t, msg.TextContent, "RCPT-7")
	assert.Contains(t, msg.TextContent, "330.00")
	assert.Contains(t, msg.TextContent, "ADM-001")
	assert.NotContains(t, msg.TextContent, "ADM-002")

	sent, err = f.svc.SendReceipt(context.Background(), fee.PaymentResult{})
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, f.mail.Sent(), 1)
}

func TestService_RemindOverdue(t *testing.T) {
	f := newFixture(t)
	core.ParseEmailTemplates(f.conf, core.NewNoopLogger())
	noEmail := testutil.CreateStudent(t, f.schools, "ADM-002", "Baraka Otieno", f.class)

	testutil.CreateCharge(t, f.repo, f.student, "Tuition", "500", "200", testutil.Date(2021, time.March, 1))
	testutil.CreateCharge(t, f.repo, f.student, "Transport", "100", "0", testutil.Date(2021, time.March, 10))
	testutil.CreateCharge(t, f.repo, f.student, "Lunch", "80", "80", testutil.Date(2021, time.March, 1))
	testutil.CreateCharge(t, f.repo, f.student, "Trip", "60", "0", testutil.Date(2021, time.April, 1))
	testutil.CreateCharge(t, f.repo, noEmail, "Tuition", "500", "0", testutil.Date(2021, time.March, 1))

	sent, err := f.svc.RemindOverdue(context.Background(), testutil.Date(2021, time.March, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := f.mail.Sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Overdue fees for Amani Juma", msgs[0].Subject)
	assert.Contains(t, msgs[0].TextContent, "400.00") // 300 tuition + 100 transport
	assert.Contains(t, msgs[0].TextContent, "2021-03-10")
	assert.NotContains(t, msgs[0].TextContent, "Trip")
	assert.NotContains(t, msgs[0].TextContent, "Lunch")

	sent, err = f.svc.RemindOverdue(context.Background(), testutil.Date(2021, time.February, 1))
	require.NoError(t, err)
	assert.Zero(t, sent)
}
