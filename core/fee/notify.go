package fee

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

const (
	receiptTemplate  = "payment_receipt"
	reminderTemplate = "overdue_reminder"
	dateLayout       = "2006-01-02"
)

type (
	receiptLine struct {
		FeeType string
		Amount  string
		Status  Status
		Balance string
	}

	receiptData struct {
		ParentName    string
		StudentName   string
		StudentCode   string
		TransactionID string
		Method        string
		PaidOn        string
		Currency      string
		Total         string
		Lines         []receiptLine
	}

	reminderLine struct {
		FeeType string
		Balance string
		DueDate string
	}

	reminderData struct {
		ParentName  string
		StudentName string
		StudentCode string
		Currency    string
		Total       string
		Lines       []reminderLine
	}
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// groupByStudent groups charges per student, keeping the order students first appear in.
func groupByStudent(charges []Charge) ([]string, map[string][]Charge) {
	order := make([]string, 0)
	groups := make(map[string][]Charge)
	for _, ch := range charges {
		if _, ok := groups[ch.StudentID]; !ok {
			order = append(order, ch.StudentID)
		}
		groups[ch.StudentID] = append(groups[ch.StudentID], ch)
	}
	return order, groups
}

func (svc *Service) parentOf(ctx context.Context, studentID string) (school.Student, bool, error) {
	std, err := svc.schools.GetStudent(ctx, school.StudentFilter{ID: studentID})
	if err != nil {
		return school.Student{}, false, err
	}
	if std.ParentEmail == "" {
		svc.logger.Warn(fmt.Sprintf("fee: student %s has no parent email", std.Code))
		return std, false, nil
	}
	return std, true, nil
}

// SendReceipt emails a receipt of the accepted lines of res to the parent of every student they belong to.
// It returns the number of receipts sent.
func (svc *Service) SendReceipt(ctx context.Context, res PaymentResult) (int, error) {
	if len(res.Accepted) == 0 {
		return 0, nil
	}

	amounts := make(map[string]decimal.Decimal, len(res.Accepted))
	charges := make([]Charge, 0, len(res.Accepted))
	for _, upd := range res.Accepted {
		ch, err := svc.repo.GetCharge(ctx, upd.ChargeID)
		if err != nil {
			return 0, errors.Wrap(err, "reading paid charge")
		}
		if _, ok := amounts[ch.ID]; !ok {
			charges = append(charges, ch)
		}
		amounts[ch.ID] = amounts[ch.ID].Add(upd.Amount)
	}

	order, groups := groupByStudent(charges)
	msgs := make([]*core.EmailMessage, 0, len(order))
	for _, studentID := range order {
		std, ok, err := svc.parentOf(ctx, studentID)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}

		first := groups[studentID][0]
		data := receiptData{
			ParentName:    std.ParentName,
			StudentName:   std.FullName,
			StudentCode:   std.Code,
			TransactionID: res.TransactionRef,
			Method:        first.PaymentMethod,
			Currency:      svc.conf.Fees.Currency,
		}
		if first.PaymentDate != nil {
			data.PaidOn = first.PaymentDate.Format(dateLayout)
		}
		total := decimal.Zero
		for _, ch := range groups[studentID] {
			total = total.Add(amounts[ch.ID])
			data.Lines = append(data.Lines, receiptLine{
				FeeType: ch.FeeType,
				Amount:  money(amounts[ch.ID]),
				Status:  ch.Status,
				Balance: money(ch.Balance()),
			})
		}
		data.Total = money(total)

		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: std.ParentName, Address: std.ParentEmail}},
			Subject:      fmt.Sprintf("Payment receipt for %s", std.FullName),
			TemplateName: receiptTemplate,
			TemplateData: data,
		})
	}

	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	return len(msgs), nil
}

// RemindOverdue emails every parent whose child has charges overdue as of today.
// It returns the number of reminders sent.
func (svc *Service) RemindOverdue(ctx context.Context, today time.Time) (int, error) {
	dueBefore := core.TruncateDate(today)
	charges, err := svc.repo.QueryCharges(ctx, ChargeFilter{
		Statuses:  []Status{StatusUnpaid, StatusPartial},
		DueBefore: &dueBefore,
		Ordering:  []core.DBOrdering{{Field: "due_date", Ascending: true}},
	})
	if err != nil {
		return 0, errors.Wrap(err, "querying overdue charges")
	}

	order, groups := groupByStudent(charges)
	msgs := make([]*core.EmailMessage, 0, len(order))
	for _, studentID := range order {
		std, ok, err := svc.parentOf(ctx, studentID)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("fee.RemindOverdue(%s): %v", studentID, err), err)
			continue
		}
		if !ok {
			continue
		}

		data := reminderData{
			ParentName:  std.ParentName,
			StudentName: std.FullName,
			StudentCode: std.Code,
			Currency:    svc.conf.Fees.Currency,
		}
		total := decimal.Zero
		for _, ch := range groups[studentID] {
			total = total.Add(ch.Balance())
			data.Lines = append(data.Lines, reminderLine{
				FeeType: ch.FeeType,
				Balance: money(ch.Balance()),
				DueDate: ch.DueDate.Format(dateLayout),
			})
		}
		data.Total = money(total)

		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: std.ParentName, Address: std.ParentEmail}},
			Subject:      fmt.Sprintf("Overdue fees for %s", std.FullName),
			TemplateName: reminderTemplate,
			TemplateData: data,
		})
	}

	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	svc.logger.Info(fmt.Sprintf("fee.RemindOverdue: %d reminder(s) for %d overdue charge(s)", len(msgs), len(charges)))
	return len(msgs), nil
}
