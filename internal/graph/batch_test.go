package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_CorrelatesResponsesById(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/$batch", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body batchRequestBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if !assert.Len(t, body.Requests, 3) {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		assert.Equal(t, "application/json", body.Requests[0].Headers["Content-Type"])
		assert.Nil(t, body.Requests[2].Headers, "bodiless requests carry no content type")

		// Responses deliberately out of order.
		fmt.Fprint(w, `{"responses":[
			{"id":"c","status":204},
			{"id":"a","status":201,"body":{"id":"new"}},
			{"id":"b","status":429,"headers":{"request-id":"r-b"},"body":{"error":{"code":"TooManyRequests"}}}
		]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	results, err := client.Batch(context.Background(), []Request{
		{ID: "a", Method: http.MethodPost, Path: "/users/u/contacts", Body: map[string]string{"givenName": "A"}},
		{ID: "b", Method: http.MethodPatch, Path: "/users/u/contacts/1", Body: map[string]string{"givenName": "B"}},
		{ID: "c", Method: http.MethodDelete, Path: "/users/u/contacts/2"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, http.StatusCreated, results[0].Status)
	require.NoError(t, results[0].Err)

	assert.Equal(t, "b", results[1].ID)
	require.Error(t, results[1].Err)
	assert.ErrorIs(t, results[1].Err, ErrThrottled)

	var ge *GraphError
	require.ErrorAs(t, results[1].Err, &ge)
	assert.Equal(t, "r-b", ge.RequestID)

	assert.Equal(t, "c", results[2].ID)
	require.NoError(t, results[2].Err)

	assert.True(t, client.Session().Throttled())
}

func TestBatch_MissingResponseIsEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"responses":[{"id":"a","status":204}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Batch(context.Background(), []Request{
		{ID: "a", Method: http.MethodDelete, Path: "/x"},
		{ID: "b", Method: http.MethodDelete, Path: "/y"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing id "b"`)
}

func TestBatch_RejectedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Batch(context.Background(), []Request{{ID: "a", Method: http.MethodDelete, Path: "/x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMethodNotAllowed)
}

func TestBatch_InputValidation(t *testing.T) {
	client := newTestClient(t, "http://unused")

	results, err := client.Batch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)

	tooMany := make([]Request, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = Request{ID: fmt.Sprint(i), Method: http.MethodDelete, Path: "/x"}
	}

	_, err = client.Batch(context.Background(), tooMany)
	require.Error(t, err)

	_, err = client.Batch(context.Background(), []Request{
		{ID: "dup", Method: http.MethodDelete, Path: "/x"},
		{ID: "dup", Method: http.MethodDelete, Path: "/y"},
	})
	require.Error(t, err)
}

func TestSend_ReturnsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"c1"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	status, err := client.Send(context.Background(), Request{Method: http.MethodPost, Path: "/users/u/contacts", Body: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)

	status, err = client.Send(context.Background(), Request{Method: http.MethodDelete, Path: "/users/u/contacts/c1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.ErrorIs(t, err, ErrNotFound)
}
