package remote_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendfill/internal/model"
	"attendfill/internal/remote"
	"attendfill/internal/remote/remotetest"
)

const origin = "https://app.example.test"

func newClient(t *testing.T, srv *remotetest.Server) *remote.Client {
	t.Helper()
	return remote.NewClient(remote.Options{BaseURL: srv.URL, Origin: origin, Timeout: 5 * time.Second})
}

func loggedIn(t *testing.T) (*remotetest.Server, *remote.Client) {
	t.Helper()
	srv := remotetest.New("ana@example.com", "s3cret")
	t.Cleanup(srv.Close)
	c := newClient(t, srv)
	require.NoError(t, c.Login(context.Background(), "ana@example.com", "s3cret"))
	return srv, c
}

func TestLoginResolvesIdentityAndSendsOrigin(t *testing.T) {
	srv, c := loggedIn(t)

	id, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, model.UserID(srv.OwnerID), id)
	assert.Equal(t, 1, srv.Calls("/auth/token"))

	// Second login on an established session makes no calls.
	require.NoError(t, c.Login(context.Background(), "ana@example.com", "s3cret"))
	assert.Equal(t, 1, srv.Calls("/auth/token"))

	for _, o := range srv.Origins() {
		assert.Equal(t, origin, o)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := remotetest.New("ana@example.com", "s3cret")
	defer srv.Close()
	c := newClient(t, srv)

	err := c.Login(context.Background(), "ana@example.com", "wrong")
	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, c.LoggedIn())
}

func TestCallsWithoutSession(t *testing.T) {
	srv := remotetest.New("u", "p")
	defer srv.Close()
	c := newClient(t, srv)
	ctx := context.Background()
	day := model.NewDay(2024, time.June, 5)

	_, err := c.FindAttendance(ctx, day)
	assert.ErrorIs(t, err, remote.ErrNoSession)
	_, err = c.CreateAttendance(ctx, model.AttendanceRecord{Date: day.Midnight()})
	assert.ErrorIs(t, err, remote.ErrNoSession)
	_, err = c.ListTimeOffRequests(ctx)
	assert.ErrorIs(t, err, remote.ErrNoSession)
	_, err = c.ListHolidayTemplates(ctx)
	assert.ErrorIs(t, err, remote.ErrNoSession)
	_, err = c.UserID()
	assert.ErrorIs(t, err, remote.ErrNoSession)

	assert.NoError(t, c.Logout(ctx))
	assert.Zero(t, srv.Calls("/user-attendance-db/find"))
}

func TestFindAttendanceUsesInclusiveUTCDayRange(t *testing.T) {
	srv, c := loggedIn(t)
	srv.Seed("2024-06-05", false)
	srv.Seed("2024-06-06", true)
	srv.Seed("2024-06-04", false)

	recs, err := c.FindAttendance(context.Background(), model.NewDay(2024, time.June, 5))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.NewDay(2024, time.June, 5), model.DayOf(recs[0].Date))

	q := srv.LastFind()
	assert.Equal(t, srv.OwnerID, q["_userId"])
	assert.Equal(t, false, q["_deleted"])
	assert.Equal(t, map[string]any{
		"$gte": "2024-06-05T00:00:00.000Z",
		"$lte": "2024-06-05T23:59:59.999Z",
	}, q["date"])

	// Deleted records are not reported.
	recs, err = c.FindAttendance(context.Background(), model.NewDay(2024, time.June, 6))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCreateAttendanceUsesSessionIdentity(t *testing.T) {
	srv, c := loggedIn(t)
	day := model.NewDay(2024, time.June, 5)

	rec, err := c.CreateAttendance(context.Background(), model.AttendanceRecord{
		UserID:    "someone-else",
		Date:      day.Midnight(),
		StartTime: 560,
		EndTime:   1150,
		BreakTime: 80,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.UserID(srv.OwnerID), rec.UserID)

	stored := srv.Records()
	require.Len(t, stored, 1)
	assert.Equal(t, srv.OwnerID, stored[0].UserID)
	assert.Equal(t, srv.OwnerID, stored[0].OwnerID)
	assert.Equal(t, "2024-06-05T00:00:00.000Z", stored[0].Date)
	assert.Equal(t, 560, stored[0].StartTime)
	assert.Equal(t, 1150, stored[0].EndTime)
	assert.Equal(t, 80, stored[0].BreakTime)
}

func TestNonSuccessIsAPIError(t *testing.T) {
	srv, c := loggedIn(t)
	srv.Fail("/user-attendance-db", http.StatusInternalServerError)

	_, err := c.CreateAttendance(context.Background(), model.AttendanceRecord{Date: time.Now().UTC()})
	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "/user-attendance-db", apiErr.Endpoint)
	assert.Contains(t, apiErr.Body, "injected")
}

func TestListTimeOffRequests(t *testing.T) {
	srv, c := loggedIn(t)
	srv.SetTimeOff(
		remotetest.TimeOff{From: "2024-06-03T00:00:00.000Z", To: "2024-06-07T00:00:00.000Z", Approvers: []string{"boss"}},
		remotetest.TimeOff{From: "2024-06-10", To: "2024-06-10"},
	)

	reqs, err := c.ListTimeOffRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, model.NewDay(2024, time.June, 3), reqs[0].From)
	assert.Equal(t, model.NewDay(2024, time.June, 7), reqs[0].To)
	assert.True(t, reqs[0].Approved())
	assert.False(t, reqs[1].Approved())
}

func TestListTimeOffRequestsDataShape(t *testing.T) {
	tests := []struct {
		name string
		doc  remotetest.TimeOff
	}{
		{"bad from", remotetest.TimeOff{From: "03/06/2024", To: "2024-06-07"}},
		{"missing to", remotetest.TimeOff{From: "2024-06-03"}},
		{"reversed", remotetest.TimeOff{From: "2024-06-07", To: "2024-06-03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c := loggedIn(t)
			srv.SetTimeOff(tt.doc)

			_, err := c.ListTimeOffRequests(context.Background())
			var shapeErr *remote.DataShapeError
			assert.ErrorAs(t, err, &shapeErr)
		})
	}
}

func TestListHolidayTemplates(t *testing.T) {
	srv, c := loggedIn(t)
	srv.SetTemplates(
		remotetest.Template{TemplateKey: "spain-barcelona", Holidays: []remotetest.Holiday{{HolidayKey: "sant-joan", HolidayDate: "2024-06-24T00:00:00.000Z"}}},
		remotetest.Template{TemplateKey: "france-paris", Holidays: []remotetest.Holiday{}},
	)

	cals, err := c.ListHolidayTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, cals, 2)
	assert.Equal(t, "spain-barcelona", cals[0].Key)
	assert.True(t, cals[0].Contains(model.NewDay(2024, time.June, 24)))

	srv.SetTemplates(remotetest.Template{TemplateKey: "x", Holidays: []remotetest.Holiday{{HolidayDate: "tomorrow"}}})
	_, err = c.ListHolidayTemplates(context.Background())
	var shapeErr *remote.DataShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "tomorrow", shapeErr.Value)

	srv.SetTemplates(remotetest.Template{Holidays: []remotetest.Holiday{}})
	_, err = c.ListHolidayTemplates(context.Background())
	assert.ErrorAs(t, err, &shapeErr)
}

func TestLogoutRevokesAndClearsSession(t *testing.T) {
	srv, c := loggedIn(t)

	require.NoError(t, c.Logout(context.Background()))
	assert.True(t, srv.Revoked())
	assert.False(t, c.LoggedIn())

	_, err := c.FindAttendance(context.Background(), model.NewDay(2024, time.June, 5))
	assert.ErrorIs(t, err, remote.ErrNoSession)
}
