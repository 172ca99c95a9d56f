package vpic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decodeFixture = `{
	"Count": 4,
	"Message": "Results returned successfully",
	"Results": [
		{"Variable": "Model Year", "Value": "2003", "VariableId": 29},
		{"Variable": "Make", "Value": "HONDA", "VariableId": 26},
		{"Variable": "Model", "Value": "Accord", "VariableId": 28},
		{"Variable": "Trim", "Value": "EX", "VariableId": 38}
	]
}`

func TestDecodeVIN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vehicles/DecodeVin/1HGCM82633A004352", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(decodeFixture))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	attrs, err := c.DecodeVIN(context.Background(), "1HGCM82633A004352")

	require.NoError(t, err)
	assert.Equal(t, "2003", attrs.Year)
	assert.Equal(t, "HONDA", attrs.Make)
	assert.Equal(t, "Accord", attrs.Model)
	assert.False(t, attrs.Empty())
}

func TestDecodeVIN_PartialResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Results": [{"Variable": "Make", "Value": "FORD"}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	attrs, err := c.DecodeVIN(context.Background(), "1FTSW21P05EB12345")

	require.NoError(t, err)
	assert.Equal(t, "FORD", attrs.Make)
	assert.Empty(t, attrs.Year)
	assert.Empty(t, attrs.Model)
}

func TestDecodeVIN_EmptyVIN(t *testing.T) {
	c := NewClient()
	_, err := c.DecodeVIN(context.Background(), "")
	require.Error(t, err)
}

func TestDecodeVIN_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.DecodeVIN(context.Background(), "1HGCM82633A004352")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}
