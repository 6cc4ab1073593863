package fee

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(d int) time.Time { return time.Date(2021, time.March, d, 0, 0, 0, 0, time.UTC) }

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		paid, amount string
		want         Status
	}{
		{"0", "500", StatusUnpaid},
		{"0.01", "500", StatusPartial},
		{"499.99", "500", StatusPartial},
		{"500", "500", StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.paid+"/"+tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(dec(tt.paid), dec(tt.amount)))
		})
	}
}

func TestCharge_pay(t *testing.T) {
	req := PaymentRequest{Method: MethodCash, Date: day(10), TransactionRef: "TXN-1", CollectedBy: "u1"}
	now := day(10).Add(9 * time.Hour)

	tests := []struct {
		name       string
		amount     string
		paid       string
		status     Status
		pay        string
		wantPaid   string
		wantStatus Status
		wantErr    func(error) bool
	}{
		{name: "completes partial", amount: "500", paid: "200", status: StatusPartial, pay: "300", wantPaid: "500", wantStatus: StatusPaid},
		{name: "first installment", amount: "500", paid: "0", status: StatusUnpaid, pay: "100", wantPaid: "100", wantStatus: StatusPartial},
		{name: "overpayment", amount: "500", paid: "200", status: StatusPartial, pay: "400", wantErr: IsOverpayment},
		{name: "one cent over", amount: "500", paid: "200", status: StatusPartial, pay: "300.01", wantErr: IsOverpayment},
		{name: "settled", amount: "500", paid: "500", status: StatusPaid, pay: "1", wantErr: func(err error) bool { return err == ErrChargeSettled }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := Charge{ID: "c1", Amount: dec(tt.amount), PaidAmount: dec(tt.paid), Status: tt.status, DueDate: day(1)}
			got, err := ch.pay(dec(tt.pay), req, now)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				assert.True(t, got.PaidAmount.Equal(dec(tt.paid)))
				assert.Equal(t, tt.status, got.Status)
				assert.Nil(t, got.PaymentDate)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.PaidAmount.Equal(dec(tt.wantPaid)), "paid = %s", got.PaidAmount)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, DeriveStatus(got.PaidAmount, got.Amount), got.Status)
			require.NotNil(t, got.PaymentDate)
			assert.Equal(t, day(10), *got.PaymentDate)
			assert.Equal(t, MethodCash, got.PaymentMethod)
			assert.Equal(t, "TXN-1", got.TransactionID)
			assert.Equal(t, "u1", got.CollectedBy)
			assert.Equal(t, now, got.UpdatedAt)
			// receiver untouched
			assert.True(t, ch.PaidAmount.Equal(dec(tt.paid)))
		})
	}
}

func TestCharge_DisplayStatus(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		due    time.Time
		today  time.Time
		want   Status
	}{
		{name: "open past due", status: StatusUnpaid, due: day(1), today: day(2), want: StatusOverdue},
		{name: "partial past due", status: StatusPartial, due: day(1), today: day(5), want: StatusOverdue},
		{name: "due today", status: StatusUnpaid, due: day(2), today: day(2).Add(15 * time.Hour), want: StatusUnpaid},
		{name: "paid past due", status: StatusPaid, due: day(1), today: day(9), want: StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := Charge{Amount: dec("10"), Status: tt.status, DueDate: tt.due}
			assert.Equal(t, tt.want, ch.DisplayStatus(tt.today))
			v := ch.View(tt.today)
			assert.Equal(t, tt.want, v.DisplayStatus)
		})
	}
}

func TestPaymentRequest_Validate(t *testing.T) {
	valid := func() PaymentRequest {
		return PaymentRequest{
			Lines:       []PaymentLine{{ChargeID: "c1", Amount: dec("10")}},
			Method:      MethodMobileMoney,
			CollectedBy: "u1",
		}
	}
	tests := []struct {
		name    string
		mutate  func(*PaymentRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(*PaymentRequest) {}},
		{name: "no lines", mutate: func(r *PaymentRequest) { r.Lines = nil }, wantErr: true},
		{name: "zero amount", mutate: func(r *PaymentRequest) { r.Lines[0].Amount = decimal.Zero }, wantErr: true},
		{name: "negative amount", mutate: func(r *PaymentRequest) { r.Lines[0].Amount = dec("-5") }, wantErr: true},
		{name: "blank charge", mutate: func(r *PaymentRequest) { r.Lines[0].ChargeID = "  " }, wantErr: true},
		{name: "unknown method", mutate: func(r *PaymentRequest) { r.Method = "barter" }, wantErr: true},
		{name: "no collector", mutate: func(r *PaymentRequest) { r.CollectedBy = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
