package httputil

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"slug":"size"}`))

	var dest struct {
		Slug string `json:"slug"`
	}
	require.NoError(t, ParseJSON(req, &dest))
	assert.Equal(t, "size", dest.Slug)
}

func TestParseJSON_Invalid(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{not json`))

	var dest map[string]string
	err := ParseJSON(req, &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest("GET", "/tenants/amsterdam", nil)
	req = mux.SetURLVars(req, map[string]string{"tenant": "amsterdam"})

	val, err := ParsePathString(req, "tenant")
	require.NoError(t, err)
	assert.Equal(t, "amsterdam", val)

	_, err = ParsePathString(req, "missing")
	assert.Error(t, err)
}
