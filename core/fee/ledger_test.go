package fee_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/school"
	emailsvc "github.com/trezcool/shule/services/email"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
	testutil "github.com/trezcool/shule/tests"
)

type fixture struct {
	svc     *fee.Service
	repo    fee.Repository
	schools school.Repository
	mail    *emailsvc.ConsoleServiceMock
	conf    *core.Config
	class   school.Class
	student school.Student
}

func newFixture(t *testing.T, wrap ...func(fee.Repository) fee.Repository) *fixture {
	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := core.NewTestConfig()
	repo := dummydb.NewFeeRepository(db)
	svcRepo := repo
	for _, w := range wrap {
		svcRepo = w(svcRepo)
	}
	schools := dummydb.NewSchoolRepository(db)
	mail := emailsvc.NewConsoleServiceMock(conf)

	f := &fixture{
		svc:     fee.NewService(svcRepo, dummydb.NewFeeReportRepository(db), schools, nil, conf, core.NewNoopLogger(), mail),
		repo:    repo,
		schools: schools,
		mail:    mail,
		conf:    conf,
	}
	f.class = testutil.CreateClass(t, schools, "Form 1", "2021")
	f.student = testutil.CreateStudent(t, schools, "ADM-001", "Amani Juma", f.class, "parent@example.com")
	return f
}

func (f *fixture) charge(t *testing.T, amount, paid string) fee.Charge {
	return testutil.CreateCharge(t, f.repo, f.student, "Tuition", amount, paid, testutil.Date(2021, time.March, 31))
}

func (f *fixture) reload(t *testing.T, id string) fee.Charge {
	ch, err := f.repo.GetCharge(context.Background(), id)
	require.NoError(t, err)
	return ch
}

func payment(lines ...fee.PaymentLine) fee.PaymentRequest {
	return fee.PaymentRequest{
		Lines:       lines,
		Method:      fee.MethodCash,
		CollectedBy: "clerk",
	}
}

func line(chargeID, amount string) fee.PaymentLine {
	return fee.PaymentLine{ChargeID: chargeID, Amount: testutil.Dec(amount)}
}

func assertConsistent(t *testing.T, ch fee.Charge) {
	t.Helper()
	assert.True(t, ch.PaidAmount.LessThanOrEqual(ch.Amount), "paid %s > amount %s", ch.PaidAmount, ch.Amount)
	assert.Equal(t, fee.DeriveStatus(ch.PaidAmount, ch.Amount), ch.Status)
}

func TestService_ApplyPayment(t *testing.T) {
	tests := []struct {
		name         string
		pay          string
		wantAccepted bool
		wantCode     string
		wantPaid     string
		wantStatus   fee.Status
	}{
		{name: "settles the balance", pay: "300", wantAccepted: true, wantPaid: "500", wantStatus: fee.StatusPaid},
		{name: "partial installment", pay: "100", wantAccepted: true, wantPaid: "300", wantStatus: fee.StatusPartial},
		{name: "overpayment", pay: "400", wantCode: fee.CodeOverpayment, wantPaid: "200", wantStatus: fee.StatusPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ch := f.charge(t, "500", "200")

			res, err := f.svc.ApplyPayment(context.Background(), payment(line(ch.ID, tt.pay)))
			require.NoError(t, err)

			stored := f.reload(t, ch.ID)
			assert.True(t, testutil.Dec(tt.wantPaid).Equal(stored.PaidAmount), "paid = %s", stored.PaidAmount)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assertConsistent(t, stored)

			if tt.wantAccepted {
				require.Len(t, res.Accepted, 1)
				assert.Empty(t, res.Rejected)
				assert.True(t, testutil.Dec(tt.wantPaid).Equal(res.Accepted[0].NewPaidAmount))
				assert.Equal(t, tt.wantStatus, res.Accepted[0].NewStatus)
				assert.True(t, testutil.Dec(tt.pay).Equal(res.TotalApplied))
				return
			}
			assert.Empty(t, res.Accepted)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, tt.wantCode, res.Rejected[0].Code)
			assert.Equal(t, ch.ID, res.Rejected[0].ChargeID)
			assert.NotEmpty(t, res.Rejected[0].Reason)
			assert.True(t, res.TotalApplied.IsZero())
			assert.Nil(t, stored.PaymentDate)
		})
	}
}

func TestService_ApplyPayment_partialSuccess(t *testing.T) {
	f := newFixture(t)
	tuition := f.charge(t, "500", "0")
	transport := f.charge(t, "100", "0")
	paid := f.charge(t, "50", "50")

	res, err := f.svc.ApplyPayment(context.Background(), payment(
		line(tuition.ID, "200"),
		line(transport.ID, "150"), // over
		line("missing", "10"),
		line(paid.ID, "1"),
		line(transport.ID, "100"),
	))
	require.NoError(t, err)

	require.Len(t, res.Accepted, 2)
	assert.Equal(t, tuition.ID, res.Accepted[0].ChargeID)
	assert.Equal(t, transport.ID, res.Accepted[1].ChargeID)
	assert.Equal(t, fee.StatusPaid, res.Accepted[1].NewStatus)
	assert.True(t, testutil.Dec("300").Equal(res.TotalApplied))

	codes := make([]string, 0, len(res.Rejected))
	for _, rej := range res.Rejected {
		codes = append(codes, rej.Code)
	}
	assert.Equal(t, []string{fee.CodeOverpayment, fee.CodeNotFound, fee.CodeSettled}, codes)

	for _, id := range []string{tuition.ID, transport.ID, paid.ID} {
		assertConsistent(t, f.reload(t, id))
	}
	assert.Equal(t, fee.StatusPartial, f.reload(t, tuition.ID).Status)
}

func TestService_ApplyPayment_sequenceNeverOverpays(t *testing.T) {
	f := newFixture(t)
	ch := f.charge(t, "1000", "0")

	for _, amt := range []string{"250", "400", "500", "0.5", "349.5", "1", "100"} {
		_, err := f.svc.ApplyPayment(context.Background(), payment(line(ch.ID, amt)))
		require.NoError(t, err)
		assertConsistent(t, f.reload(t, ch.ID))
	}
	stored := f.reload(t, ch.ID)
	assert.True(t, testutil.Dec("1000").Equal(stored.PaidAmount))
	assert.Equal(t, fee.StatusPaid, stored.Status)

	events, err := f.svc.PaymentHistory(context.Background(), ch.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, ev := range events {
		assert.True(t, ev.PaidBefore.Add(ev.Amount).Equal(ev.PaidAfter))
		sum = sum.Add(ev.Amount)
	}
	assert.True(t, sum.Equal(stored.PaidAmount), "events sum to %s", sum)
}

func TestService_ApplyPayment_metadata(t *testing.T) {
	testutil.FreezeTime(t, time.Date(2021, time.March, 15, 10, 30, 0, 0, time.UTC))
	f := newFixture(t)
	ch := f.charge(t, "500", "0")

	req := payment(line(ch.ID, "100"))
	req.Method = fee.MethodBankTransfer
	req.Remarks = "  first term  "
	res, err := f.svc.ApplyPayment(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.TransactionRef, "TXN-"))

	stored := f.reload(t, ch.ID)
	assert.Equal(t, res.TransactionRef, stored.TransactionID)
	assert.Equal(t, fee.MethodBankTransfer, stored.PaymentMethod)
	assert.Equal(t, "first term", stored.Remarks)
	assert.Equal(t, "clerk", stored.CollectedBy)
	require.NotNil(t, stored.PaymentDate)
	assert.Equal(t, testutil.Date(2021, time.March, 15), *stored.PaymentDate)

	events, err := f.svc.PaymentHistory(context.Background(), ch.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, res.TransactionRef, events[0].TransactionID)
	assert.True(t, events[0].PaidBefore.IsZero())
	assert.Equal(t, fee.StatusPartial, events[0].StatusAfter)

	req = payment(line(ch.ID, "50"))
	req.TransactionRef = "BANK-42"
	req.Date = time.Date(2021, time.March, 12, 18, 0, 0, 0, time.UTC)
	res, err = f.svc.ApplyPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "BANK-42", res.TransactionRef)
	stored = f.reload(t, ch.ID)
	assert.Equal(t, testutil.Date(2021, time.March, 12), *stored.PaymentDate)
}

// countingRepo counts store calls.
type countingRepo struct {
	fee.Repository
	mu    sync.Mutex
	calls int
}

func (r *countingRepo) count() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *countingRepo) GetCharge(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Charge, error) {
	r.count()
	return r.Repository.GetCharge(ctx, id, exec...)
}

func (r *countingRepo) UpdateChargePayment(ctx context.Context, ch fee.Charge, prevPaid decimal.Decimal, exec ...core.DBExecutor) error {
	r.count()
	return r.Repository.UpdateChargePayment(ctx, ch, prevPaid, exec...)
}

func TestService_ApplyPayment_validatesFirst(t *testing.T) {
	spy := &countingRepo{}
	f := newFixture(t, func(repo fee.Repository) fee.Repository {
		spy.Repository = repo
		return spy
	})
	ch := f.charge(t, "500", "0")

	tests := []struct {
		name string
		req  fee.PaymentRequest
	}{
		{name: "no lines", req: payment()},
		{name: "zero amount", req: payment(line(ch.ID, "100"), line(ch.ID, "0"))},
		{name: "negative amount", req: payment(line(ch.ID, "-1"))},
		{name: "bad method", req: fee.PaymentRequest{Lines: []fee.PaymentLine{line(ch.ID, "1")}, Method: "iou", CollectedBy: "clerk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ApplyPayment(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, core.IsValidation(err))
			assert.Zero(t, spy.calls)
		})
	}
	assert.True(t, f.reload(t, ch.ID).PaidAmount.IsZero())
}

// racingRepo lets another writer pay `race` on the charge right before each of the first `times` updates.
type racingRepo struct {
	fee.Repository
	race  decimal.Decimal
	times int
}

func (r *racingRepo) UpdateChargePayment(ctx context.Context, ch fee.Charge, prevPaid decimal.Decimal, exec ...core.DBExecutor) error {
	if r.times > 0 {
		r.times--
		cur, err := r.Repository.GetCharge(ctx, ch.ID)
		if err != nil {
			return err
		}
		other := cur
		other.PaidAmount = cur.PaidAmount.Add(r.race)
		other.Status = fee.DeriveStatus(other.PaidAmount, other.Amount)
		if err = r.Repository.UpdateChargePayment(ctx, other, cur.PaidAmount); err != nil {
			return err
		}
	}
	return r.Repository.UpdateChargePayment(ctx, ch, prevPaid, exec...)
}

func TestService_ApplyPayment_concurrentWriter(t *testing.T) {
	tests := []struct {
		name       string
		races      int
		race       string
		pay        string
		wantCode   string
		wantPaid   string
		wantStatus fee.Status
	}{
		{name: "retried after a stale read", races: 1, race: "100", pay: "300", wantPaid: "400", wantStatus: fee.StatusPartial},
		{name: "retry sees the new balance", races: 1, race: "300", pay: "300", wantCode: fee.CodeOverpayment, wantPaid: "300", wantStatus: fee.StatusPartial},
		{name: "gives up after max attempts", races: 10, race: "1", pay: "10", wantCode: fee.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			racer := &racingRepo{race: testutil.Dec(tt.race), times: tt.races}
			f := newFixture(t, func(repo fee.Repository) fee.Repository {
				racer.Repository = repo
				return racer
			})
			ch := f.charge(t, "500", "0")

			res, err := f.svc.ApplyPayment(context.Background(), payment(line(ch.ID, tt.pay)))
			require.NoError(t, err)
			stored := f.reload(t, ch.ID)
			assertConsistent(t, stored)

			if tt.wantCode != "" {
				require.Len(t, res.Rejected, 1)
				assert.Equal(t, tt.wantCode, res.Rejected[0].Code)
			} else {
				require.Len(t, res.Accepted, 1)
			}
			if tt.wantPaid != "" {
				assert.True(t, testutil.Dec(tt.wantPaid).Equal(stored.PaidAmount), "paid = %s", stored.PaidAmount)
				assert.Equal(t, tt.wantStatus, stored.Status)
			}
		})
	}
}

// brokenRepo fails reads of one charge.
type brokenRepo struct {
	fee.Repository
	brokenID string
}

func (r *brokenRepo) GetCharge(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Charge, error) {
	if id == r.brokenID {
		return fee.Charge{}, errors.New("connection reset by peer")
	}
	return r.Repository.GetCharge(ctx, id, exec...)
}

func TestService_ApplyPayment_storeError(t *testing.T) {
	broken := &brokenRepo{}
	f := newFixture(t, func(repo fee.Repository) fee.Repository {
		broken.Repository = repo
		return broken
	})
	bad := f.charge(t, "500", "0")
	good := f.charge(t, "500", "0")
	broken.brokenID = bad.ID

	res, err := f.svc.ApplyPayment(context.Background(), payment(line(bad.ID, "100"), line(good.ID, "100")))
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, fee.CodeStore, res.Rejected[0].Code)
	assert.Contains(t, res.Rejected[0].Reason, "connection reset")
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, good.ID, res.Accepted[0].ChargeID)
}
