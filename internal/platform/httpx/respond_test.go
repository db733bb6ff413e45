package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ams/internal/shared"
)

type sampleRequest struct {
	Code string `json:"code" validate:"required,max=8"`
	Kind string `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestDecodeJSONValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"a"}`))
	var body sampleRequest
	err := DecodeJSON(req, &body)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "code")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"x","extra":1}`))
	var body sampleRequest
	require.ErrorIs(t, DecodeJSON(req, &body), shared.ErrValidation)
}

func TestDecodeJSONAccepts(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"INC-1","kind":"b"}`))
	var body sampleRequest
	require.NoError(t, DecodeJSON(req, &body))
	require.Equal(t, "INC-1", body.Code)
}

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.Invalid("amount", "must be positive"), http.StatusBadRequest},
		{fmt.Errorf("ledger: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("invoice number taken: %w", shared.ErrConflict), http.StatusConflict},
		{shared.ErrForbidden, http.StatusForbidden},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("driver exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("password=hunter2"))
	require.NotContains(t, rec.Body.String(), "hunter2")
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("start_date", "2026-03-31")
	require.NoError(t, err)
	require.Equal(t, "2026-03-31", FormatDate(d))

	_, err = ParseDate("start_date", "31/03/2026")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPath(t *testing.T) {
	require.Equal(t, "/api/reports/7", Path("api", "reports", 7))
}

func TestListEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	List[string](rec, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"count":0,"results":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	List(rec, MapSlice([]int{1, 2}, func(i int) string { return fmt.Sprint(i * 10) }))
	require.JSONEq(t, `{"count":2,"results":["10","20"]}`, rec.Body.String())
}
