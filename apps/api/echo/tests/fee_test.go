package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

const isoDate = "2006-01-02"

func Test_feeApi_assess(t *testing.T) {
	admin := createUser(t, "feeadmin01", user.RoleAdmin)
	teacher := createUser(t, "feeteacher01", user.RoleTeacher)
	adminToken := getToken(t, admin)

	cls := testutil.CreateClass(t, schoolRepo, "Form 1 East", "2021")
	std := testutil.CreateStudent(t, schoolRepo, "FEE-001", "Amani Otieno", cls)
	due := core.Today().AddDate(0, 1, 0).Format(isoDate)

	body := func(studentID, amount string) []byte {
		return marchallObj(t, map[string]interface{}{
			"student_id": studentID,
			"fee_type":   "Tuition",
			"amount":     amount,
			"due_date":   due,
		})
	}

	runHTTPTests(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/fees/charges", body: body(std.ID, "100"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", method: http.MethodPost, path: "/v1/fees/charges", body: body(std.ID, "100"), token: getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "zero amount", method: http.MethodPost, path: "/v1/fees/charges", body: body(std.ID, "0"), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "bad due date", method: http.MethodPost, path: "/v1/fees/charges", body: marchallObj(t, map[string]interface{}{
			"student_id": std.ID, "fee_type": "Tuition", "amount": "100", "due_date": "next week",
		}), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "unknown student", method: http.MethodPost, path: "/v1/fees/charges", body: body("b1c6a7f4-1d2e-4c1b-9a55-0f0e6d1c2b3a", "100"), token: adminToken, wantCode: http.StatusNotFound},
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/charges", adminToken, body(std.ID, "1500.50"))
		serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var ch fee.ChargeView
		decode(t, rec, &ch)
		assert.NotEmpty(t, ch.ID)
		assert.Equal(t, fee.StatusUnpaid, ch.Status)
		assert.Equal(t, fee.StatusUnpaid, ch.DisplayStatus)
		assert.True(t, testutil.Dec("1500.50").Equal(ch.Balance))
		assert.Equal(t, due, ch.DueDate.Format(isoDate))
	})
}

func Test_feeApi_assessClass(t *testing.T) {
	admin := createUser(t, "feeadmin02", user.RoleAdmin)
	cls := testutil.CreateClass(t, schoolRepo, "Form 1 West", "2021")
	testutil.CreateStudent(t, schoolRepo, "FEE-011", "Baraka Mwangi", cls)
	testutil.CreateStudent(t, schoolRepo, "FEE-012", "Chausiku Njeri", cls)

	req, rec := newAuthRequest(http.MethodPost, "/v1/fees/charges/batch", getToken(t, admin), marchallObj(t, map[string]interface{}{
		"class_id": cls.ID,
		"fee_type": "Library",
		"amount":   "75",
		"due_date": core.Today().Format(isoDate),
	}))
	serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report fee.AssessReport
	decode(t, rec, &report)
	assert.Len(t, report.Created, 2)
	assert.Empty(t, report.Errors)
}

func Test_feeApi_payments(t *testing.T) {
	admin := createUser(t, "feeadmin03", user.RoleAdmin)
	adminToken := getToken(t, admin)

	cls := testutil.CreateClass(t, schoolRepo, "Form 2 North", "2021")
	std := testutil.CreateStudent(t, schoolRepo, "FEE-021", "Dalila Achieng", cls, "achieng@test.cd")
	today := core.Today()
	tuition := testutil.CreateCharge(t, feeRepo, std, "Tuition", "1000", "0", today.AddDate(0, 0, -10))
	trip := testutil.CreateCharge(t, feeRepo, std, "Trip", "200", "0", today.AddDate(0, 0, 10))
	sent := len(mailSvc.Sent())

	t.Run("invalid request", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/payments", adminToken, marchallObj(t, map[string]interface{}{
			"lines":  []interface{}{},
			"method": "barter",
		}))
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var fields map[string]string
		decode(t, rec, &fields)
		assert.Contains(t, fields, "lines")
		assert.Contains(t, fields, "method")
	})

	t.Run("partial success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees/payments", adminToken, marchallObj(t, map[string]interface{}{
			"lines": []fee.PaymentLine{
				{ChargeID: tuition.ID, Amount: testutil.Dec("400")},
				{ChargeID: trip.ID, Amount: testutil.Dec("250")},
			},
			"method":          fee.MethodMobileMoney,
			"transaction_ref": "MPESA-7731",
		}))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp PaymentResponse
		decode(t, rec, &resp)
		assert.Equal(t, "MPESA-7731", resp.TransactionRef)
		require.Len(t, resp.Accepted, 1)
		assert.Equal(t, tuition.ID, resp.Accepted[0].ChargeID)
		assert.Equal(t, fee.StatusPartial, resp.Accepted[0].NewStatus)
		require.Len(t, resp.Rejected, 1)
		assert.Equal(t, fee.CodeOverpayment, resp.Rejected[0].Code)
		assert.True(t, testutil.Dec("400").Equal(resp.TotalApplied))
		assert.Equal(t, 1, resp.ReceiptsSent)
		assert.Len(t, mailSvc.Sent(), sent+1)
	})

	t.Run("history", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees/charges/"+tuition.ID+"/payments", adminToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var events []fee.PaymentEvent
		decode(t, rec, &events)
		require.Len(t, events, 1)
		assert.Equal(t, admin.ID, events[0].CollectedBy)
		assert.True(t, testutil.Dec("400").Equal(events[0].PaidAfter))

		req, rec = newAuthRequest(http.MethodGet, "/v1/fees/charges/"+trip.ID+"/payments", adminToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &events)
		assert.Empty(t, events)
	})

	t.Run("query", func(t *testing.T) {
		path := func(statuses ...fee.Status) string {
			v := url.Values{"student_id": {std.ID}, "ordering": {"-amount"}}
			for _, st := range statuses {
				v.Add("status", string(st))
			}
			return "/v1/fees/charges?" + v.Encode()
		}
		tests := []struct {
			name     string
			path     string
			wantCode int
			wantIDs  []string
		}{
			{name: "all", path: path(), wantCode: http.StatusOK, wantIDs: []string{tuition.ID, trip.ID}},
			{name: "overdue", path: path(fee.StatusOverdue), wantCode: http.StatusOK, wantIDs: []string{tuition.ID}},
			{name: "unpaid", path: path(fee.StatusUnpaid), wantCode: http.StatusOK, wantIDs: []string{trip.ID}},
			{name: "paid", path: path(fee.StatusPaid), wantCode: http.StatusOK, wantIDs: []string{}},
			{name: "invalid status", path: path("Lost"), wantCode: http.StatusBadRequest},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				req, rec := newAuthRequest(http.MethodGet, tc.path, adminToken)
				serve(req, rec)
				require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
				if tc.wantIDs == nil {
					return
				}
				var views []fee.ChargeView
				decode(t, rec, &views)
				ids := make([]string, 0, len(views))
				for _, v := range views {
					ids = append(ids, v.ID)
				}
				assert.Equal(t, tc.wantIDs, ids)
			})
		}
	})

	t.Run("summary", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees/summary?student_id="+std.ID, adminToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sum fee.Summary
		decode(t, rec, &sum)
		assert.Equal(t, 2, sum.Charges)
		assert.True(t, testutil.Dec("1200").Equal(sum.TotalDue))
		assert.True(t, testutil.Dec("400").Equal(sum.TotalPaid))
		assert.True(t, testutil.Dec("800").Equal(sum.TotalOutstanding))
		assert.True(t, testutil.Dec("600").Equal(sum.TotalOverdue))
		assert.Equal(t, 1, sum.Overdue)

		// nothing is overdue before the tuition is due
		asOf := today.AddDate(0, 0, -20).Format(isoDate)
		req, rec = newAuthRequest(http.MethodGet, "/v1/fees/summary?student_id="+std.ID+"&as_of="+asOf, adminToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &sum)
		assert.Equal(t, 0, sum.Overdue)
		assert.True(t, sum.TotalOverdue.IsZero())
	})

	t.Run("bad as_of", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees/summary?as_of=yesterday", adminToken)
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
