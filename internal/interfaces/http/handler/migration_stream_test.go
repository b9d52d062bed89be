package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmigration "github.com/agencyboard/backend/internal/application/migration"
	"github.com/agencyboard/backend/internal/domain/migration"
)

func TestStreamSendsSnapshotFirst(t *testing.T) {
	engine, jobs, _ := testServer(t)

	parent, err := migration.NewParentJob(uuid.New(), migration.JobConfig{
		APIKey: "key-abc", APIToken: "token-xyz", BoardIDs: []string{"5f9a1b2c3d4e5f6a7b8c9d0e"},
	})
	require.NoError(t, err)
	require.NoError(t, jobs.Save(context.Background(), parent))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/migrations/"+parent.ID.String()+"/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: snapshot")
	assert.Contains(t, body, parent.ID.String())
	assert.NotContains(t, body, "key-abc")
	assert.NotContains(t, body, "token-xyz")
}

func TestStreamLifecyclePayloads(t *testing.T) {
	h := NewMigrationStreamHandler(nil)
	var buf bytes.Buffer

	require.NoError(t, h.send(&buf, appmigration.Event{Type: appmigration.EventStarted}))
	require.NoError(t, h.send(&buf, appmigration.Event{Type: appmigration.EventCompleted}))
	require.NoError(t, h.send(&buf, appmigration.Event{Type: appmigration.EventFailed, Error: "board not found"}))
	require.NoError(t, h.send(&buf, appmigration.Event{Type: appmigration.EventProgress, JobID: uuid.New()}))

	out := buf.String()
	assert.Contains(t, out, "event: started\ndata: {\"started\":true}\n\n")
	assert.Contains(t, out, "event: completed\ndata: {\"completed\":true}\n\n")
	assert.Contains(t, out, "event: error\ndata: {\"error\":\"board not found\"}\n\n")
	// progress frames keep the full event shape
	assert.Contains(t, out, "event: progress\ndata: {\"type\":\"progress\"")
}

func TestStreamUnknownJob(t *testing.T) {
	engine, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/migrations/"+uuid.NewString()+"/stream", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
