package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officio/Async-billing-service/internal/domain"
	"github.com/officio/Async-billing-service/pkg/logger"
)

func TestNotifyJobCreatedPostsPayload(t *testing.T) {
	var received domain.WorkerNotification
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewHTTPWorkerClient(Config{BaseURL: srv.URL}, logger.New(logger.ERROR))
	notification := domain.WorkerNotification{
		JobID:    uuid.New(),
		TenantID: uuid.New(),
		UserID:   "user-1",
		Type:     domain.JobTypeCreateInvoice,
		Payload:  json.RawMessage(`{"customer":"acme"}`),
	}

	require.NoError(t, client.NotifyJobCreated(context.Background(), notification))
	assert.Equal(t, "/jobs", path)
	assert.Equal(t, notification.JobID, received.JobID)
	assert.Equal(t, notification.Type, received.Type)
}

func TestNotifyJobCreatedReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPWorkerClient(Config{BaseURL: srv.URL}, logger.New(logger.ERROR))
	err := client.NotifyJobCreated(context.Background(), domain.WorkerNotification{JobID: uuid.New()})

	// Ошибка возвращается вызывающему; глотать ее или нет решает он
	assert.Error(t, err)
}

func TestNotifyJobCreatedTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewHTTPWorkerClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, logger.New(logger.ERROR))
	err := client.NotifyJobCreated(context.Background(), domain.WorkerNotification{JobID: uuid.New()})
	assert.Error(t, err)
}
