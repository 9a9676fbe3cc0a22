package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL:         baseURL,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
	})
}

func TestGenerateAndWaitSynchronousResult(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/generate", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"image": "https://cdn.example.com/out.png"})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).GenerateAndWait(context.Background(), GenerateRequest{Model: "google/nano-banana", Prompt: "a cat"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/out.png", result.Image)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateAndWaitPollsUntilCompleted(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"predictionId": "pred-1"})
		case "/predictions/pred-1":
			n := atomic.AddInt32(&polls, 1)
			if n < 4 {
				json.NewEncoder(w).Encode(map[string]interface{}{"status": "processing"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "completed", "image": "https://cdn.example.com/out.png"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	var progress []int
	result, err := newTestClient(server.URL).GenerateAndWait(context.Background(), GenerateRequest{Model: "m"}, func(attempt int) {
		progress = append(progress, attempt)
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/out.png", result.Image)
	assert.Equal(t, "pred-1", result.PredictionID)
	assert.Equal(t, int32(4), atomic.LoadInt32(&polls))
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
}

func TestGenerateAndWaitTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/generate" {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"predictionId": "pred-1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "processing"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAndWait(context.Background(), GenerateRequest{Model: "m"}, nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGenerateAndWaitInsufficientCredits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "not enough credits"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAndWait(context.Background(), GenerateRequest{Model: "m"}, nil)
	require.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Contains(t, err.Error(), "not enough credits")
}

func TestGenerateAndWaitFailedPrediction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/generate" {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"predictionId": "pred-1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "failed", "error": "NSFW content detected"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAndWait(context.Background(), GenerateRequest{Model: "m"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NSFW content detected")
}

func TestGenerateAndWaitCompletedWithoutResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/generate" {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"predictionId": "pred-1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "completed"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAndWait(context.Background(), GenerateRequest{Model: "m"}, nil)
	assert.ErrorIs(t, err, ErrCompletedWithoutResult)
}

func TestGenerateAndWaitOtherErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAndWait(context.Background(), GenerateRequest{Model: "m"}, nil)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
}

func TestGenerateAndWaitAcceptedWithoutPredictionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAndWait(context.Background(), GenerateRequest{Model: "m"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prediction ID")
}

func TestGenerateAndWaitContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/generate" {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"predictionId": "pred-1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "processing"})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:         server.URL,
		PollInterval:    time.Hour,
		MaxPollAttempts: 5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.GenerateAndWait(ctx, GenerateRequest{Model: "m"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
