package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhiway/jobstack-bap/internal/store"
)

func TestSign(t *testing.T) {
	sig := Sign("POST", "/notify", "1756000000", "deadbeef", "topsecret")

	require.True(t, strings.HasPrefix(sig, "v1="))

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte("POST\n/notify\n1756000000\ndeadbeef"))
	assert.Equal(t, "v1="+hex.EncodeToString(mac.Sum(nil)), sig)
}

func TestSignVariesWithInputs(t *testing.T) {
	base := Sign("POST", "/notify", "1756000000", "deadbeef", "topsecret")
	assert.NotEqual(t, base, Sign("GET", "/notify", "1756000000", "deadbeef", "topsecret"))
	assert.NotEqual(t, base, Sign("POST", "/notify", "1756000001", "deadbeef", "topsecret"))
	assert.NotEqual(t, base, Sign("POST", "/notify", "1756000000", "deadbeef", "other"))
}

func TestNewNonce(t *testing.T) {
	a, err := newNonce()
	require.NoError(t, err)
	b, err := newNonce()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestExtractFields(t *testing.T) {
	row := store.HighMatch{
		JobID:     "j1",
		ProfileID: "p1",
		Score:     87,
		ProfileMetadata: json.RawMessage(`{
			"name": "Asha", "phone": "+919999999999"
		}`),
		JobStructure: json.RawMessage(`{
			"descriptor": {"name": "Delivery Executive"},
			"tags": {"basicInfo": {"jobProviderName": "Speedy Couriers"}}
		}`),
	}

	f, err := ExtractFields(row)
	require.NoError(t, err)
	assert.Equal(t, "+919999999999", f.Phone)
	assert.Equal(t, "Asha", f.Name)
	assert.Equal(t, "Delivery Executive", f.Role)
	assert.Equal(t, "Speedy Couriers", f.Provider)
}

func TestExtractFieldsDefaults(t *testing.T) {
	row := store.HighMatch{
		ProfileMetadata: json.RawMessage(`{"phone": "+911234"}`),
		JobStructure:    json.RawMessage(`{}`),
	}

	f, err := ExtractFields(row)
	require.NoError(t, err)
	assert.Equal(t, "User", f.Name)
	assert.Equal(t, "Job", f.Role)
	assert.Equal(t, "Company", f.Provider)
}
