package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandleListLabs(t *testing.T) {
	cat := &MockCatalogService{}
	s := testAPIServer(&MockSessionService{}, cat)

	cat.On("List", mock.Anything).Return([]*catalog.Entry{
		{ID: "dvwa", Name: "DVWA", Image: "vulnerables/web-dvwa", InternalPort: 80},
		{ID: "network-scanning", Name: "Basic Network Scanning"},
	}, nil)

	rec := serve(s, httptest.NewRequest("GET", "/v1/labs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Labs []catalog.Entry `json:"labs"`
	}
	testutil.DecodeJSON(t, rec, &body)
	require.Len(t, body.Labs, 2)
	assert.Equal(t, "dvwa", body.Labs[0].ID)
	assert.False(t, body.Labs[1].Containerized())
}

func TestHandleGetLab_NotFound(t *testing.T) {
	cat := &MockCatalogService{}
	s := testAPIServer(&MockSessionService{}, cat)

	cat.On("Get", mock.Anything, "nope").Return(nil, fmt.Errorf("%w: nope", catalog.ErrNotFound))

	rec := serve(s, httptest.NewRequest("GET", "/v1/labs/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var apiErr APIError
	testutil.DecodeJSON(t, rec, &apiErr)
	assert.Equal(t, ErrCodeLabNotFound, apiErr.Code)
}
