package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	err := BadRequestError("bad date").OnField("startDate").WithParam("value", "yesterday").WithError(errors.New("parse"))
	if e := AppErrorResponse(c, err); e != nil {
		t.Fatalf("AppErrorResponse: %v", e)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusBadRequest || len(body.Data) != 1 {
		t.Fatalf("body = %s", rec.Body.String())
	}
	got := body.Data[0]
	if got.Code != CodeBadRequest || got.Field != "startDate" || got.Params["value"] != "yesterday" {
		t.Fatalf("error = %+v", got)
	}
	if got.Err != nil {
		t.Fatalf("cause leaked into response")
	}
}

func TestAppErrorResponseHidesPlainErrors(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	_ = AppErrorResponse(c, errors.New("dsn password=secret"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); strings.Contains(got, "secret") {
		t.Fatalf("internal error leaked: %s", got)
	}
}

type sampleRequest struct {
	Horizon int    `query:"horizon" default:"7" validate:"gte=1,lte=365"`
	Mode    string `query:"mode" default:"fast" validate:"oneof=fast slow"`
}

func TestReadAndValidateRequest(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/?mode=slow")
	req := &sampleRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		t.Fatalf("unexpected errors: %+v", verr)
	}
	if req.Horizon != 7 || req.Mode != "slow" {
		t.Fatalf("req = %+v", req)
	}

	c, _ = newContext(http.MethodGet, "/?horizon=400&mode=medium")
	verr := ReadAndValidateRequest(c, &sampleRequest{})
	if len(verr) != 2 {
		t.Fatalf("errors = %+v", verr)
	}
	if verr[0].Code != "ERR_LTE" || verr[0].Params["max"] != "365" {
		t.Errorf("horizon error = %+v", verr[0])
	}
	if verr[1].Code != "ERR_ONEOF" {
		t.Errorf("mode error = %+v", verr[1])
	}
}
