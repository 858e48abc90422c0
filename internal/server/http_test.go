package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tsinin/message-broker/internal/broker"
	"github.com/tsinin/message-broker/internal/model"
)

func TestHealthEndpoint(t *testing.T) {
	storage := broker.New(model.RAM, model.MutexQueue, zap.NewNop())
	srv := NewHTTPServer(storage, 0, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatsEndpoint(t *testing.T) {
	storage := broker.New(model.RAM, model.MutexQueue, zap.NewNop())
	storage.PostMessage(model.NewTextMessage("one"), "t1")
	storage.PostMessage(model.NewTextMessage("two"), "t1")
	storage.PostMessage(model.NewBinaryMessage([]byte("x")), "t2")

	srv := NewHTTPServer(storage, 0, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Topics       []broker.TopicStat `json:"topics"`
		TopicCount   int                `json:"topic_count"`
		TotalPending int                `json:"total_pending"`
		TotalWaiters int                `json:"total_waiters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Equal(t, 2, body.TopicCount)
	require.Equal(t, 3, body.TotalPending)
	require.Equal(t, 0, body.TotalWaiters)
	require.Equal(t, []broker.TopicStat{
		{Topic: "t1", Pending: 2},
		{Topic: "t2", Pending: 1},
	}, body.Topics)
}
