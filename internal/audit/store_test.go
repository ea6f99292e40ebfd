package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleAttempt(messageID string, n int) *Attempt {
	return &Attempt{
		MessageID:      messageID,
		TargetLanguage: "de",
		Provider:       "primary",
		Attempt:        n,
		Prompt:         "translate this",
		Response:       "übersetze das",
		Duration:       120 * time.Millisecond,
	}
}

func TestRecordAndQueryAttempts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAttempt(ctx, sampleAttempt("msg-1", 1)))
	require.NoError(t, store.RecordAttempt(ctx, sampleAttempt("msg-1", 2)))
	require.NoError(t, store.RecordAttempt(ctx, sampleAttempt("msg-2", 1)))

	attempts, err := store.AttemptsForMessage(ctx, "msg-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].Attempt)
	assert.Equal(t, 2, attempts[1].Attempt)
	assert.Equal(t, "translate this", attempts[0].Prompt)
	assert.Equal(t, "übersetze das", attempts[0].Response)
	assert.Equal(t, 120*time.Millisecond, attempts[0].Duration)
}

func TestRecordFailedAttempt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := sampleAttempt("msg-err", 1)
	a.Response = ""
	a.Error = "deadline exceeded"
	require.NoError(t, store.RecordAttempt(ctx, a))

	attempts, err := store.AttemptsForMessage(ctx, "msg-err")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "deadline exceeded", attempts[0].Error)
	assert.Empty(t, attempts[0].Response)
}

func TestAttemptsForUnknownMessage(t *testing.T) {
	store := newTestStore(t)

	attempts, err := store.AttemptsForMessage(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestCleanupOldRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAttempt(ctx, sampleAttempt("msg-new", 1)))

	// Fresh rows survive a cleanup.
	require.NoError(t, store.CleanupOldRecords(ctx, 1))
	attempts, err := store.AttemptsForMessage(ctx, "msg-new")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	assert.Error(t, store.CleanupOldRecords(ctx, 0))
	assert.Error(t, store.CleanupOldRecords(ctx, -5))
}

func TestNewRejectsInvalidPaths(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("../escape/audit.db")
	assert.Error(t, err)
}

func TestEncryptionRoundTrip(t *testing.T) {
	t.Setenv("LINGOBRIDGE_ENABLE_ENCRYPTION", "true")
	t.Setenv("LINGOBRIDGE_ENCRYPTION_SECRET", strings.Repeat("s", 32))

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAttempt(ctx, sampleAttempt("msg-enc", 1)))

	attempts, err := store.AttemptsForMessage(ctx, "msg-enc")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "translate this", attempts[0].Prompt)
	assert.Equal(t, "übersetze das", attempts[0].Response)
}

func TestEncryptionRequiresStrongSecret(t *testing.T) {
	t.Setenv("LINGOBRIDGE_ENABLE_ENCRYPTION", "true")
	t.Setenv("LINGOBRIDGE_ENCRYPTION_SECRET", "short")

	_, err := New(filepath.Join(t.TempDir(), "audit.db"))
	assert.Error(t, err)
}

func TestEncryptorDisabledPassthrough(t *testing.T) {
	enc, err := newEncryptor()
	require.NoError(t, err)

	out, err := enc.EncryptIfEnabled("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestEncryptorProducesDistinctCiphertexts(t *testing.T) {
	t.Setenv("LINGOBRIDGE_ENABLE_ENCRYPTION", "true")
	t.Setenv("LINGOBRIDGE_ENCRYPTION_SECRET", strings.Repeat("k", 40))

	enc, err := newEncryptor()
	require.NoError(t, err)

	a, err := enc.EncryptIfEnabled("same text")
	require.NoError(t, err)
	b, err := enc.EncryptIfEnabled("same text")
	require.NoError(t, err)

	assert.NotEqual(t, "same text", a)
	assert.NotEqual(t, a, b)

	back, err := enc.DecryptIfEnabled(a)
	require.NoError(t, err)
	assert.Equal(t, "same text", back)
}
