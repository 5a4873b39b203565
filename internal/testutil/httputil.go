package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// JSONRequest builds a handler request carrying body as JSON. A nil body
// sends no payload and no Content-Type.
func JSONRequest(t testing.TB, method, path string, body any) *http.Request {
	t.Helper()
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	data, err := json.Marshal(body)
	require.NoError(t, err, "encode request body")
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON checks the response is JSON and decodes it into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"), "body: %s", rec.Body.String())
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), "body: %s", rec.Body.String())
}

// WebsocketURL rewrites an httptest server URL to the ws scheme and
// appends path, which may carry a query string.
func WebsocketURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}
