package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-other` (a leading "-" sorts descending).
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:]
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q", s)
	}
	return t, nil
}

// Date is a calendar date in JSON bodies: "2021-03-10" or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// queryDate returns the date in query param name, or nil when absent.
func queryDate(ctx echo.Context, name string) (*time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	t, err := parseDate(val)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: "invalid date, expected YYYY-MM-DD"})
	}
	return &t, nil
}
