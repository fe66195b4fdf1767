package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTables(t *testing.T) {
	tables, err := extractTables("../../migrations/0001_init.up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"drivers", "cab_types", "trips", "trip_events"}, tables)
}

func TestJudge(t *testing.T) {
	assert.Equal(t, statusPass, judge(http.StatusOK, time.Millisecond, nil, http.StatusOK).Status)
	assert.Equal(t, statusFail, judge(http.StatusTeapot, time.Millisecond, nil, http.StatusOK).Status)
	assert.Equal(t, statusFail, judge(0, 0, errors.New("refused"), http.StatusOK).Status)
}

func TestStatusCase_SendsBearerUnlessExpecting401(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAuth = append(gotAuth, req.Header.Get("Authorization"))
		if req.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRunner(Config{BaseURL: srv.URL, TokenPrefix: "rider"})
	ctx := context.Background()
	assert.Equal(t, statusPass, statusCase("ok", http.MethodGet, "/health", nil, http.StatusOK).Run(ctx, r).Status)
	assert.Equal(t, statusPass, statusCase("unauth", http.MethodGet, "/api/trips", nil, http.StatusUnauthorized).Run(ctx, r).Status)
	assert.Equal(t, []string{"Bearer rider-0", ""}, gotAuth)
}
