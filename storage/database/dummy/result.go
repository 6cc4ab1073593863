package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/result"
)

type resultRepository struct {
	result  *resultTable
	student *studentTable
	subject *subjectTable
}

var (
	_ result.Repository       = (*resultRepository)(nil) // interface compliance check
	_ result.ReportRepository = (*resultRepository)(nil)
)

func newResultRepository(db *DB) *resultRepository {
	return &resultRepository{result: db.result, student: db.student, subject: db.subject}
}

func NewResultRepository(db *DB) result.Repository {
	return newResultRepository(db)
}

func NewResultReportRepository(db *DB) result.ReportRepository {
	return newResultRepository(db)
}

func (repo *resultRepository) CreateResult(_ context.Context, rec result.Record, _ ...core.DBExecutor) (result.Record, error) {
	repo.result.Lock()
	defer repo.result.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	repo.result.rows = append(repo.result.rows, rec)
	return rec, nil
}

func (repo *resultRepository) query(filter result.Filter) []result.Record {
	search := strings.ToLower(filter.Search)
	if search != "" {
		repo.student.RLock()
		defer repo.student.RUnlock()
	}

	records := make([]result.Record, 0)
	for _, rec := range repo.result.rows {
		if (filter.StudentID != "" && rec.StudentID != filter.StudentID) ||
			(filter.ClassID != "" && rec.ClassID != filter.ClassID) ||
			(filter.SubjectID != "" && rec.SubjectID != filter.SubjectID) ||
			(filter.ExamType != "" && rec.ExamType != filter.ExamType) ||
			(filter.From != nil && rec.ExamDate.Before(*filter.From)) ||
			(filter.To != nil && rec.ExamDate.After(*filter.To)) {
			continue
		}
		if search != "" {
			std, ok := repo.student.table[rec.StudentID]
			if !ok || !(strings.Contains(strings.ToLower(std.FullName), search) ||
				strings.Contains(strings.ToLower(std.Code), search)) {
				continue
			}
		}
		records = append(records, rec)
	}
	return records
}

func (repo *resultRepository) QueryResults(_ context.Context, filter result.Filter, _ ...core.DBExecutor) ([]result.Record, error) {
	repo.result.RLock()
	defer repo.result.RUnlock()

	records := repo.query(filter)
	sort.SliceStable(records, func(i, j int) bool { return records[i].ExamDate.After(records[j].ExamDate) })
	return records, nil
}

func (repo *resultRepository) ResultStats(_ context.Context, filter result.Filter, _ ...core.DBExecutor) (result.Stats, error) {
	repo.result.RLock()
	defer repo.result.RUnlock()

	stats := result.Stats{
		AveragePercentage: decimal.Zero,
		HighestPercentage: decimal.Zero,
		LowestPercentage:  decimal.Zero,
	}
	records := repo.query(filter)
	if len(records) == 0 {
		return stats, nil
	}

	students := make(map[string]bool)
	sum := decimal.Zero
	stats.HighestPercentage = records[0].Percentage
	stats.LowestPercentage = records[0].Percentage
	for _, rec := range records {
		students[rec.StudentID] = true
		sum = sum.Add(rec.Percentage)
		stats.HighestPercentage = decimal.Max(stats.HighestPercentage, rec.Percentage)
		stats.LowestPercentage = decimal.Min(stats.LowestPercentage, rec.Percentage)
	}
	stats.Count = len(records)
	stats.Students = len(students)
	stats.AveragePercentage = sum.Div(decimal.NewFromInt(int64(len(records)))).Round(2)
	return stats, nil
}

func (repo *resultRepository) SubjectAverages(_ context.Context, studentID, examType string, _ ...core.DBExecutor) ([]result.SubjectAverage, error) {
	repo.result.RLock()
	defer repo.result.RUnlock()

	sums := make(map[string]decimal.Decimal)
	avgs := make(map[string]*result.SubjectAverage)
	for _, rec := range repo.query(result.Filter{StudentID: studentID, ExamType: examType}) {
		avg, ok := avgs[rec.SubjectID]
		if !ok {
			avg = &result.SubjectAverage{SubjectID: rec.SubjectID}
			avgs[rec.SubjectID] = avg
			sums[rec.SubjectID] = decimal.Zero
		}
		avg.Exams++
		sums[rec.SubjectID] = sums[rec.SubjectID].Add(rec.Percentage)
	}

	repo.subject.RLock()
	defer repo.subject.RUnlock()

	out := make([]result.SubjectAverage, 0, len(avgs))
	for id, avg := range avgs {
		if sub, ok := repo.subject.table[id]; ok {
			avg.SubjectName = sub.Name
		}
		avg.AveragePercentage = sums[id].Div(decimal.NewFromInt(int64(avg.Exams)))
		out = append(out, *avg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectName < out[j].SubjectName })
	return out, nil
}
