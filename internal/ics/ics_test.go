package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendfill/internal/model"
)

const barcelona = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//attendfill//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:sant-joan@test\r\n" +
	"SUMMARY:Sant Joan\r\n" +
	"DTSTART;VALUE=DATE:20200624\r\n" +
	"DTEND;VALUE=DATE:20200625\r\n" +
	"RRULE:FREQ=YEARLY\r\n" +
	"EXDATE;VALUE=DATE:20230624\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:bridge@test\r\n" +
	"SUMMARY:Company bridge\r\n" +
	"DTSTART;VALUE=DATE:20240612\r\n" +
	"DTEND;VALUE=DATE:20240614\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:offsite@test\r\n" +
	"SUMMARY:Offsite\r\n" +
	"DTSTART:20240605T080000Z\r\n" +
	"DTEND:20240605T170000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func juneDays(t *testing.T, year int) []model.Day {
	t.Helper()
	events, err := Parse(Source{ID: "bcn"}, []byte(barcelona))
	require.NoError(t, err)
	require.Len(t, events, 3)

	days, err := HolidayDays(events, model.NewDay(year, time.June, 1), model.NewDay(year, time.June, 30))
	require.NoError(t, err)
	return days
}

func TestHolidayDaysExpandsRecurringAndMultiDay(t *testing.T) {
	assert.Equal(t, []model.Day{
		model.NewDay(2024, time.June, 5),
		model.NewDay(2024, time.June, 12),
		model.NewDay(2024, time.June, 13),
		model.NewDay(2024, time.June, 24),
	}, juneDays(t, 2024))
}

func TestHolidayDaysHonorsExDate(t *testing.T) {
	assert.Empty(t, juneDays(t, 2023))
	assert.Equal(t, []model.Day{model.NewDay(2025, time.June, 24)}, juneDays(t, 2025))
}

func TestHolidayDaysRejectsInvertedRange(t *testing.T) {
	_, err := HolidayDays(nil, model.NewDay(2024, time.June, 2), model.NewDay(2024, time.June, 1))
	assert.Error(t, err)
}

func TestParseRejectsEventWithoutStart(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:x@test\r\nSUMMARY:No start\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	_, err := Parse(Source{ID: "broken"}, []byte(body))
	assert.Error(t, err)

	_, err = Parse(Source{ID: "empty"}, nil)
	assert.Error(t, err)
}

func TestFetcherUsesConditionalRequestsAndCache(t *testing.T) {
	var hits, conditional atomic.Int32
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(barcelona))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	src := Source{ID: "bcn", URL: srv.URL + "/private/token123.ics"}
	ctx := context.Background()

	first, err := f.Fetch(ctx, src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.True(t, strings.Contains(string(first.Body), "Sant Joan"))

	second, err := f.Fetch(ctx, src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(1), conditional.Load())

	down.Store(true)
	third, err := f.Fetch(ctx, src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcherRefetchesWhenCachedBodyIsMissing(t *testing.T) {
	var conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 03 Jun 2024 10:00:00 GMT")
		_, _ = w.Write([]byte(barcelona))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	src := Source{ID: "bcn", URL: srv.URL + "/bcn.ics"}
	ctx := context.Background()

	_, err := f.Fetch(ctx, src)
	require.NoError(t, err)

	// meta.json survives, body.ics does not.
	require.NoError(t, os.Remove(filepath.Join(f.cachePath(src.URL), "body.ics")))

	res, err := f.Fetch(ctx, src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Contains(t, string(res.Body), "Sant Joan")
	assert.Zero(t, conditional.Load())
}

func TestFetcherFailsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	_, err := f.Fetch(context.Background(), Source{ID: "x", URL: srv.URL})
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), Source{ID: "empty"})
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc.ics?token=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
