package dummydb

import (
	"sync"

	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type (
	// DB is an in-memory store. Rows are kept by ID; seq records insertion order where reads depend on it.
	DB struct {
		user     *userTable
		class    *classTable
		student  *studentTable
		subject  *subjectTable
		charge   *chargeTable
		payment  *paymentTable
		boundary *boundaryTable
		result   *resultTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	classTable struct {
		sync.RWMutex
		table map[string]*school.Class
		seq   []string
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*school.Student
		seq   []string
	}

	subjectTable struct {
		sync.RWMutex
		table map[string]*school.Subject
		seq   []string
	}

	chargeTable struct {
		sync.RWMutex
		table map[string]*fee.Charge
	}

	paymentTable struct {
		sync.RWMutex
		rows []fee.PaymentEvent
	}

	boundaryTable struct {
		sync.RWMutex
		rows []grading.Boundary
	}

	resultTable struct {
		sync.RWMutex
		rows []result.Record
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:     &userTable{table: make(map[string]*user.User)},
		class:    &classTable{table: make(map[string]*school.Class)},
		student:  &studentTable{table: make(map[string]*school.Student)},
		subject:  &subjectTable{table: make(map[string]*school.Subject)},
		charge:   &chargeTable{table: make(map[string]*fee.Charge)},
		payment:  &paymentTable{},
		boundary: &boundaryTable{},
		result:   &resultTable{},
	}
	return db, nil
}
