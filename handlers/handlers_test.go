package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	result contracts.Result
	err    error
	calls  []Kind
}

func (w *fakeWorker) Work(_ context.Context, kind Kind, _ contracts.QueueItem) (contracts.Result, error) {
	w.calls = append(w.calls, kind)
	return w.result, w.err
}

type fakeExcluder struct {
	excluded []string
	err      error
}

func (e *fakeExcluder) Exclude(_ context.Context, _ Kind, item contracts.QueueItem) error {
	e.excluded = append(e.excluded, item.SubjectID)
	return e.err
}

func TestFuncs(t *testing.T) {
	failed := false
	h := Funcs{
		TaskFunc: func(context.Context, contracts.QueueItem) (contracts.Result, error) {
			return contracts.Completed(), nil
		},
		FailureFunc: func(context.Context, contracts.QueueItem) { failed = true },
	}

	result, err := h.Task(context.Background(), contracts.QueueItem{})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCompleted, result.Status)

	h.Failure(context.Background(), contracts.QueueItem{})
	assert.True(t, failed)

	assert.NotPanics(t, func() {
		Funcs{}.Failure(context.Background(), contracts.QueueItem{})
	})
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"media", "image", "gallery", "metadata"} {
		kind, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), kind)
	}
	_, err := ParseKind("video")
	assert.Error(t, err)
}

func TestAdapter_DelegatesToWorker(t *testing.T) {
	worker := &fakeWorker{result: contracts.Retry(nil)}
	h := NewMedia(worker, nil)

	result, err := h.Task(context.Background(), contracts.QueueItem{SubjectID: "42"})

	require.NoError(t, err)
	assert.Equal(t, contracts.StatusRetry, result.Status)
	assert.Equal(t, []Kind{KindMedia}, worker.calls)
	assert.Equal(t, 15, h.MaxAttempts)
}

func TestAdapter_ImageUsesLowerCeiling(t *testing.T) {
	h := NewImage(&fakeWorker{}, nil)
	assert.Equal(t, 5, h.MaxAttempts)
	assert.Len(t, h.QueueOptions(), 1)
}

func TestAdapter_DropsMalformedItems(t *testing.T) {
	worker := &fakeWorker{result: contracts.Retry(nil)}

	cases := map[string]*Adapter{
		"gallery without plugin": NewGallery(worker, nil),
		"image without path":     NewImage(worker, nil),
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := h.Task(context.Background(), contracts.QueueItem{SubjectID: "7", Payload: contracts.Payload{}})
			require.NoError(t, err)
			assert.Equal(t, contracts.StatusCompleted, result.Status)
		})
	}
	assert.Empty(t, worker.calls)

	_, err := NewGallery(worker, nil).Task(context.Background(), contracts.QueueItem{
		SubjectID: "7",
		Payload:   contracts.Payload{PayloadPlugin: "nextgen"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindGallery}, worker.calls)
}

func TestAdapter_FailureExcludesSubject(t *testing.T) {
	excluder := &fakeExcluder{err: errors.New("host unavailable")}
	h := NewMetadata(&fakeWorker{}, excluder)

	h.Failure(context.Background(), contracts.QueueItem{SubjectID: "9"})

	assert.Equal(t, []string{"9"}, excluder.excluded)
	assert.NotPanics(t, func() {
		NewMetadata(&fakeWorker{}, nil).Failure(context.Background(), contracts.QueueItem{})
	})
}

func TestNew_SelectsKind(t *testing.T) {
	for _, kind := range []Kind{KindMedia, KindImage, KindGallery, KindMetadata} {
		assert.Equal(t, kind, New(kind, &fakeWorker{}, nil).Kind)
	}
}

func TestWebhook_Work(t *testing.T) {
	var got webhookRequest
	status := webhookStatusPending
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(webhookResponse{
			Status:  status,
			Payload: contracts.Payload{"step": "thumbnails"},
		})
	}))
	defer ts.Close()

	hook := NewWebhook(ts.URL, "", time.Second)
	item := contracts.QueueItem{SubjectID: "12", Attempts: 3, Payload: contracts.Payload{"size": "large"}}

	result, err := hook.Work(context.Background(), KindMedia, item)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusRetry, result.Status)
	assert.Equal(t, "thumbnails", result.Payload.String("step"))
	assert.Equal(t, webhookRequest{Kind: KindMedia, SubjectID: "12", Attempts: 3, Payload: contracts.Payload{"size": "large"}}, got)

	status = webhookStatusDone
	result, err = hook.Work(context.Background(), KindMedia, item)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCompleted, result.Status)
}

func TestWebhook_WorkErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"unknown status": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"maybe"}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(handler)
			defer ts.Close()

			_, err := NewWebhook(ts.URL, "", time.Second).Work(context.Background(), KindImage, contracts.QueueItem{})
			assert.Error(t, err)
		})
	}
}

func TestWebhook_Exclude(t *testing.T) {
	var got webhookFailure
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	hook := NewWebhook("", ts.URL, time.Second)
	require.NoError(t, hook.Exclude(context.Background(), KindGallery, contracts.QueueItem{SubjectID: "5", Attempts: 16}))
	assert.Equal(t, webhookFailure{Kind: KindGallery, SubjectID: "5", Attempts: 16, Reason: "max_attempts_exceeded"}, got)

	assert.NoError(t, NewWebhook("", "", time.Second).Exclude(context.Background(), KindGallery, contracts.QueueItem{}))
}
