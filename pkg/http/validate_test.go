package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type horizonReq struct {
	Timestamp string `json:"timestamp" validate:"required"`
	Horizon   int    `json:"horizon" default:"24" validate:"gte=1,lte=168"`
}

func bind(t *testing.T, body string) (*horizonReq, []ValidationError) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	var r horizonReq
	return &r, ReadAndValidateRequest(c, &r)
}

func TestReadAndValidateDefaults(t *testing.T) {
	r, errs := bind(t, `{"timestamp":"2024-06-01T00:00"}`)
	require.Nil(t, errs)
	assert.Equal(t, 24, r.Horizon)
}

func TestReadAndValidateExplicitValueWins(t *testing.T) {
	r, errs := bind(t, `{"timestamp":"2024-06-01T00:00","horizon":6}`)
	require.Nil(t, errs)
	assert.Equal(t, 6, r.Horizon)
}

func TestReadAndValidateReportsJSONNames(t *testing.T) {
	_, errs := bind(t, `{"horizon":500}`)
	require.Len(t, errs, 2)
	fields := []string{errs[0].Field, errs[1].Field}
	assert.ElementsMatch(t, []string{"timestamp", "horizon"}, fields)
	for _, e := range errs {
		if e.Field == "horizon" {
			assert.Equal(t, "ERR_LTE", e.Code)
			assert.Equal(t, "168", e.Params["max"])
		}
	}
}

func TestReadAndValidateMalformed(t *testing.T) {
	_, errs := bind(t, `{"timestamp":`)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MALFORMED", errs[0].Code)
}
