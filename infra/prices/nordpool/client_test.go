package nordpool

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/askelund/spotheat/core/model"
)

func TestPricesFetchesAndSorts(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/dayahead/2025-01-10", r.URL.Path)
		require.Equal(t, "SE3", r.URL.Query().Get("zone"))
		fmt.Fprint(w, `{"zone":"SE3","currency":"EUR","points":[
			{"start":"2025-01-10T01:00:00Z","price":0.52},
			{"start":"2025-01-10T00:00:00Z","price":0.48}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	c.now = func() time.Time { return now }

	series, err := c.Prices(context.Background(), "SE3", model.DayToday)
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.True(t, series[0].Timestamp.Before(series[1].Timestamp), "series must be sorted")
	require.Equal(t, 0.48, series[0].Price)
}

func TestPricesTomorrowUsesNextDate(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/dayahead/2025-01-11", r.URL.Path)
		fmt.Fprint(w, `{"points":[]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	c.now = func() time.Time { return now }

	_, err := c.Prices(context.Background(), "SE3", model.DayTomorrow)
	require.NoError(t, err)
}

func TestPricesNotPublishedYet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Prices(context.Background(), "SE3", model.DayTomorrow)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no prices published")
}
