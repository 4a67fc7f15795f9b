package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://generativelanguage.googleapis.com", "https://generativelanguage.googleapis.com/v1/models/gemini-1.5-flash:generateContent"},
		{"https://generativelanguage.googleapis.com/v1beta/", "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"},
		{"", "https://generativelanguage.googleapis.com/v1/models/gemini-1.5-flash:generateContent"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, generateURL(tc.base, "gemini-1.5-flash"), "base=%q", tc.base)
	}
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient("   ")
	require.Error(t, err)
}

func TestGenerate_Success(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/models/test-model:generateContent", r.URL.Path)
		require.Equal(t, "k-123", r.Header.Get("x-goog-api-key"))
		require.Empty(t, r.URL.Query().Get("key"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &gotBody))
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"😊 Hello!"}]}}]}`)
	}))
	defer srv.Close()

	c, err := NewClient("k-123", WithBaseURL(srv.URL), WithModel("test-model"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), []Content{UserText("hi"), ModelText("hello"), UserText("again")})
	require.NoError(t, err)
	require.Equal(t, "😊 Hello!", out)

	require.Len(t, gotBody.Contents, 3)
	require.Equal(t, RoleUser, gotBody.Contents[0].Role)
	require.Equal(t, RoleModel, gotBody.Contents[1].Role)
	require.Equal(t, "again", gotBody.Contents[2].Parts[0].Text)
}

func TestGenerate_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"quota"}}`)
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []Content{UserText("hi")})
	require.Error(t, err)
	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	require.Contains(t, se.Body, "quota")
}

func TestGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []Content{UserText("hi")})
	require.ErrorIs(t, err, ErrEmptyReply)
}

func TestGenerate_SingleRequestNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), []Content{UserText("hi")})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
