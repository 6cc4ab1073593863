package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	emailsvc "github.com/trezcool/shule/services/email"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
	testutil "github.com/trezcool/shule/tests"
)

func TestNewScheduler(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		spec     string
		wantJobs int
		wantErr  bool
	}{
		{name: "disabled", enabled: false, spec: "0 7 * * *", wantJobs: 0},
		{name: "enabled", enabled: true, spec: "0 7 * * *", wantJobs: 1},
		{name: "bad spec", enabled: true, spec: "every morning", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf := core.NewTestConfig()
			conf.Fees.RemindersEnabled = tc.enabled
			conf.Fees.RemindersSpec = tc.spec

			s, err := NewScheduler(conf, core.NewNoopLogger(), nil)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantJobs, s.Jobs())
		})
	}
}

func TestScheduler_RemindOverdue(t *testing.T) {
	testutil.FreezeTime(t, time.Date(2021, time.March, 20, 7, 0, 0, 0, time.UTC))

	db, err := dummydb.Open()
	require.NoError(t, err)
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(conf, core.NewNoopLogger())

	schools := dummydb.NewSchoolRepository(db)
	charges := dummydb.NewFeeRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	fees := fee.NewService(charges, dummydb.NewFeeReportRepository(db), schools, nil, conf, core.NewNoopLogger(), mailSvc)

	cls := testutil.CreateClass(t, schools, "Form 2", "2021")
	std := testutil.CreateStudent(t, schools, "ADM-101", "Neema Wanjiru", cls, "wanjiru@example.com")
	testutil.CreateCharge(t, charges, std, "Tuition", "400", "0", testutil.Date(2021, time.March, 10))
	testutil.CreateCharge(t, charges, std, "Trip", "50", "0", testutil.Date(2021, time.April, 1))

	s, err := NewScheduler(conf, core.NewNoopLogger(), fees)
	require.NoError(t, err)
	s.RemindOverdue()

	sent := mailSvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "wanjiru@example.com", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "400.00")
	assert.NotContains(t, sent[0].TextContent, "Trip")
}
