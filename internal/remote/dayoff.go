package remote

import (
	"context"
	"errors"
	"fmt"

	"attendfill/internal/model"
)

const (
	timeOffFindEndpoint      = "/user-time-off-request-db/find"
	holidayTemplatesEndpoint = "/calendar-template-db/templates"
)

type timeOffQuery struct {
	UserID string `json:"_userId"`
}

type timeOffDoc struct {
	ID        string   `json:"_id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Approvers []string `json:"approvers"`
}

type holidayDoc struct {
	HolidayKey  string `json:"holidayKey"`
	HolidayDate string `json:"holidayDate"`
}

type templateDoc struct {
	TemplateKey string       `json:"templateKey"`
	Holidays    []holidayDoc `json:"holidays"`
}

// ListTimeOffRequests returns every time-off request of the current user,
// approved or not.
func (c *Client) ListTimeOffRequests(ctx context.Context) ([]model.TimeOffRequest, error) {
	if !c.LoggedIn() {
		return nil, ErrNoSession
	}
	var docs []timeOffDoc
	if err := c.doJSON(ctx, timeOffFindEndpoint, timeOffQuery{UserID: string(c.userID)}, &docs); err != nil {
		return nil, err
	}

	out := make([]model.TimeOffRequest, 0, len(docs))
	for i, d := range docs {
		from, err := model.ParseDay(d.From)
		if err != nil {
			return nil, &DataShapeError{Endpoint: timeOffFindEndpoint, Field: fmt.Sprintf("[%d].from", i), Value: d.From, Err: err}
		}
		to, err := model.ParseDay(d.To)
		if err != nil {
			return nil, &DataShapeError{Endpoint: timeOffFindEndpoint, Field: fmt.Sprintf("[%d].to", i), Value: d.To, Err: err}
		}
		if to.Before(from) {
			return nil, &DataShapeError{
				Endpoint: timeOffFindEndpoint,
				Field:    fmt.Sprintf("[%d]", i),
				Value:    d.From + ".." + d.To,
				Err:      errors.New("from after to"),
			}
		}
		out = append(out, model.TimeOffRequest{From: from, To: to, Approvers: d.Approvers})
	}
	return out, nil
}

// ListHolidayTemplates returns all holiday calendar templates of the company.
func (c *Client) ListHolidayTemplates(ctx context.Context) ([]model.HolidayCalendar, error) {
	if !c.LoggedIn() {
		return nil, ErrNoSession
	}
	var docs []templateDoc
	if err := c.doJSON(ctx, holidayTemplatesEndpoint, nil, &docs); err != nil {
		return nil, err
	}

	out := make([]model.HolidayCalendar, 0, len(docs))
	for i, d := range docs {
		if d.TemplateKey == "" {
			return nil, &DataShapeError{Endpoint: holidayTemplatesEndpoint, Field: fmt.Sprintf("[%d].templateKey", i)}
		}
		cal := model.HolidayCalendar{Key: d.TemplateKey, Holidays: make([]model.Day, 0, len(d.Holidays))}
		for j, h := range d.Holidays {
			day, err := model.ParseDay(h.HolidayDate)
			if err != nil {
				return nil, &DataShapeError{
					Endpoint: holidayTemplatesEndpoint,
					Field:    fmt.Sprintf("[%d].holidays[%d].holidayDate", i, j),
					Value:    h.HolidayDate,
					Err:      err,
				}
			}
			cal.Holidays = append(cal.Holidays, day)
		}
		out = append(out, cal)
	}
	return out, nil
}
