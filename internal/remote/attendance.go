package remote

import (
	"context"
	"time"

	"attendfill/internal/model"
)

const (
	attendanceEndpoint     = "/user-attendance-db"
	attendanceFindEndpoint = "/user-attendance-db/find"
)

// isoMillis is the timestamp layout the platform stores and queries with.
const isoMillis = "2006-01-02T15:04:05.000Z"

type dateRange struct {
	GTE string `json:"$gte"`
	LTE string `json:"$lte"`
}

type attendanceQuery struct {
	UserID  string    `json:"_userId"`
	Date    dateRange `json:"date"`
	Deleted bool      `json:"_deleted"`
}

type attendanceDoc struct {
	ID        string `json:"_id,omitempty"`
	UserID    string `json:"_userId"`
	OwnerID   string `json:"ownerId"`
	Date      string `json:"date"`
	StartTime int    `json:"startTime"`
	EndTime   int    `json:"endTime"`
	BreakTime int    `json:"breakTime"`
}

// FindAttendance returns the non-deleted records of the current user whose
// date lies in [day 00:00:00.000Z, day 23:59:59.999Z].
func (c *Client) FindAttendance(ctx context.Context, day model.Day) ([]model.AttendanceRecord, error) {
	if !c.LoggedIn() {
		return nil, ErrNoSession
	}
	q := attendanceQuery{
		UserID: string(c.userID),
		Date: dateRange{
			GTE: day.Midnight().Format(isoMillis),
			LTE: day.LastInstant().Format(isoMillis),
		},
		Deleted: false,
	}

	var docs []attendanceDoc
	if err := c.doJSON(ctx, attendanceFindEndpoint, q, &docs); err != nil {
		return nil, err
	}

	out := make([]model.AttendanceRecord, 0, len(docs))
	for _, d := range docs {
		rec, err := d.record(attendanceFindEndpoint)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CreateAttendance submits rec for the current user. rec.UserID is ignored;
// the session identity is used as both user and owner.
func (c *Client) CreateAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	if !c.LoggedIn() {
		return model.AttendanceRecord{}, ErrNoSession
	}
	doc := attendanceDoc{
		UserID:    string(c.userID),
		OwnerID:   string(c.userID),
		Date:      rec.Date.UTC().Format(isoMillis),
		StartTime: int(rec.StartTime),
		EndTime:   int(rec.EndTime),
		BreakTime: int(rec.BreakTime),
	}

	var created attendanceDoc
	if err := c.doJSON(ctx, attendanceEndpoint, doc, &created); err != nil {
		return model.AttendanceRecord{}, err
	}

	rec.UserID = c.userID
	rec.ID = created.ID
	return rec, nil
}

func (d attendanceDoc) record(endpoint string) (model.AttendanceRecord, error) {
	t, err := time.Parse(time.RFC3339Nano, d.Date)
	if err != nil {
		return model.AttendanceRecord{}, &DataShapeError{Endpoint: endpoint, Field: "date", Value: d.Date, Err: err}
	}
	return model.AttendanceRecord{
		ID:        d.ID,
		UserID:    model.UserID(d.UserID),
		Date:      t.UTC(),
		StartTime: model.Minutes(d.StartTime),
		EndTime:   model.Minutes(d.EndTime),
		BreakTime: model.Minutes(d.BreakTime),
	}, nil
}
