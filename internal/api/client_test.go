package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muratovb/geowatch/internal/models"
)

func TestCheckIn_RequestShape(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody checkRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", "secret-token")
	err := c.CheckIn(context.Background(), 41.3111, 69.2406, "Auto check-in")
	require.NoError(t, err)

	assert.Equal(t, "/api/attendance/check-in", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, 41.3111, gotBody.Latitude)
	assert.Equal(t, 69.2406, gotBody.Longitude)
	assert.Equal(t, "Auto check-in", gotBody.Notes)
}

func TestCheckOut_Endpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token")
	require.NoError(t, c.CheckOut(context.Background(), 41.0, 69.0, ""))
	assert.Equal(t, "/attendance/check-out", gotPath)
}

func TestPost_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "stale-token")
	err := c.CheckIn(context.Background(), 41.0, 69.0, "")
	assert.ErrorContains(t, err, "401")
}

func TestPost_MissingTokenSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.CheckIn(context.Background(), 41.0, 69.0, "")
	assert.ErrorIs(t, err, ErrAuthMissing)
	assert.False(t, called, "no network attempt without a token")
}

func TestSendEvent_RoutesByType(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	require.NoError(t, c.SendEvent(context.Background(), &models.AttendanceEvent{EventType: models.EventCheckIn}))
	require.NoError(t, c.SendEvent(context.Background(), &models.AttendanceEvent{EventType: models.EventCheckOut}))
	assert.Equal(t, []string{"/attendance/check-in", "/attendance/check-out"}, paths)

	err := c.SendEvent(context.Background(), &models.AttendanceEvent{EventType: "BREAK"})
	assert.ErrorContains(t, err, "unknown event type")
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls int32
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls)
}

func TestRetry_BoundedAttempts(t *testing.T) {
	var calls int32
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return errors.New("down")
	})
	assert.ErrorContains(t, err, "down")
	assert.EqualValues(t, 3, calls)
}

func TestRetry_AuthMissingNotRetried(t *testing.T) {
	var calls int32
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return ErrAuthMissing
	})
	assert.ErrorIs(t, err, ErrAuthMissing)
	assert.EqualValues(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}
