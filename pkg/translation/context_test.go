package translation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "lingobridge/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionsResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
}

func TestTranslateWithContext(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(completionsResponse("  Hallo Welt  "))
	}))
	defer server.Close()

	c := NewContextClient(server.URL, "key-1", "test-model", 5*time.Second)
	translated, prompt, err := c.TranslateWithContext(context.Background(), "hello world", "en", "de", []ContextMessage{
		{AuthorName: "bob", Content: "what's up"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hallo Welt", translated)
	assert.NotEmpty(t, prompt)

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "English")
	assert.Contains(t, captured.Messages[0].Content, "German")
	assert.Contains(t, captured.Messages[1].Content, "bob: what's up")
	assert.Equal(t, "hello world", captured.Messages[2].Content)
}

func TestTranslateWithContextNoHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 2)
		json.NewEncoder(w).Encode(completionsResponse("ok"))
	}))
	defer server.Close()

	c := NewContextClient(server.URL, "", "m", 5*time.Second)
	_, _, err := c.TranslateWithContext(context.Background(), "hi", "auto", "fr", nil)
	require.NoError(t, err)
}

func TestTranslateWithContextValidation(t *testing.T) {
	c := NewContextClient("http://unused.invalid", "", "m", time.Second)

	_, _, err := c.TranslateWithContext(context.Background(), "hi", "xx", "de", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, _, err = c.TranslateWithContext(context.Background(), "hi", "en", "auto", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestTranslateWithContextProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "error payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{"message": "model overloaded"},
				})
			},
		},
		{
			name: "empty choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
			},
		},
		{
			name: "blank translation",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(completionsResponse("   "))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewContextClient(server.URL, "", "m", 5*time.Second)
			_, prompt, err := c.TranslateWithContext(context.Background(), "hi", "en", "de", nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsRetryable(err))
			assert.Equal(t, apperrors.ErrCodeTranslationProvider, apperrors.GetCode(err))
			assert.NotEmpty(t, prompt, "audit prompt must survive failures")
		})
	}
}

func TestTranslateWithContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(completionsResponse("late"))
	}))
	defer server.Close()

	c := NewContextClient(server.URL, "", "m", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.TranslateWithContext(ctx, "hi", "en", "de", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestBuildContextPromptClipsFragments(t *testing.T) {
	long := strings.Repeat("x", 1000)
	prompt := buildContextPrompt([]ContextMessage{
		{AuthorName: "a", Content: long},
		{AuthorName: "b", Content: "short"},
	})

	assert.Contains(t, prompt, "b: short")
	assert.Less(t, len(prompt), 700)
}

func TestBuildContextPromptEmpty(t *testing.T) {
	assert.Empty(t, buildContextPrompt(nil))
}
