package problem_test

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremylongshore/moat/pkg/moat/problem"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) problem.Detail {
	t.Helper()
	var d problem.Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	return d
}

func TestWriteUnauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	problem.WriteUnauthorized(rec, "missing token")
	assert.Equal(t, 401, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	d := decode(t, rec)
	assert.Equal(t, "Unauthorized", d.Title)
	assert.Equal(t, "missing token", d.Detail)
}

func TestWriteUnauthorized_DefaultDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	problem.WriteUnauthorized(rec, "")
	d := decode(t, rec)
	assert.Equal(t, "authentication required", d.Detail)
}

func TestWriteForbidden_CarriesRuleHit(t *testing.T) {
	rec := httptest.NewRecorder()
	problem.WriteForbidden(rec, "denied", "scope_not_allowed:read")
	assert.Equal(t, 403, rec.Code)

	d := decode(t, rec)
	assert.Equal(t, "scope_not_allowed:read", d.RuleHit)
}

func TestWriteNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	problem.WriteNotFound(rec, "capability not found")
	assert.Equal(t, 404, rec.Code)
}

func TestWriteUnprocessable(t *testing.T) {
	rec := httptest.NewRecorder()
	problem.WriteUnprocessable(rec, "schema violation")
	assert.Equal(t, 422, rec.Code)
}

func TestWriteBadGateway(t *testing.T) {
	rec := httptest.NewRecorder()
	problem.WriteBadGateway(rec, "upstream failed")
	assert.Equal(t, 502, rec.Code)
}

func TestWriteBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	problem.WriteBadRequest(rec, "invalid body")
	assert.Equal(t, 400, rec.Code)
}

func TestWriteInternal_NeverLeaksErrorDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	problem.WriteInternal(rec, fmt.Errorf("leaked secret token xyz"))
	assert.Equal(t, 500, rec.Code)

	d := decode(t, rec)
	assert.NotContains(t, d.Detail, "xyz")
}

func TestDetail_Error(t *testing.T) {
	d := &problem.Detail{Title: "Not Found", Detail: "capability not found"}
	assert.Equal(t, "Not Found: capability not found", d.Error())
}
