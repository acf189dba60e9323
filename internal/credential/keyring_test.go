package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyRoundTrip(t *testing.T) {
	k := New(keyring.NewArrayKeyring(nil))

	_, err := k.APIKey("https://redmine.example.com")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	require.NoError(t, k.SetAPIKey("https://redmine.example.com/", "secret"))

	got, err := k.APIKey("https://redmine.example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	require.NoError(t, k.DeleteAPIKey("https://redmine.example.com"))
	require.NoError(t, k.DeleteAPIKey("https://redmine.example.com"))

	_, err = k.APIKey("https://redmine.example.com")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestSetAPIKeyRejectsEmpty(t *testing.T) {
	k := New(keyring.NewArrayKeyring(nil))
	assert.Error(t, k.SetAPIKey("https://redmine.example.com", ""))
}

func TestResolve(t *testing.T) {
	k := New(keyring.NewArrayKeyring([]keyring.Item{
		{Key: "redmine:https://redmine.example.com", Data: []byte("stored")},
	}))

	got, err := k.Resolve("https://redmine.example.com", "configured")
	require.NoError(t, err)
	assert.Equal(t, "configured", got)

	got, err = k.Resolve("https://redmine.example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "stored", got)

	_, err = k.Resolve("https://other.example.com", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
