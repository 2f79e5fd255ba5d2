package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type echoArgs struct {
	Name string `json:"name"`
}

type echoResp struct {
	Greeting string `json:"greeting"`
}

func TestAdaptBindsBodyAndRendersJSON(t *testing.T) {
	router := gin.New()
	router.POST("/echo", Adapt(func(ctx *gin.Context, args *echoArgs) (echoResp, error) {
		return echoResp{Greeting: "hello " + args.Name}, nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"agents-0"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp echoResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hello agents-0", resp.Greeting)
}

func TestAdaptRendersApierrorWithItsOwnStatus(t *testing.T) {
	router := gin.New()
	router.POST("/echo", Adapt(func(ctx *gin.Context, args *echoArgs) (echoResp, error) {
		return echoResp{}, apierror.WrapError(apierror.ErrNoCapacity, "no warm VM in pool agents", nil)
	}))

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "NoCapacity", body.Error)
	require.Equal(t, "no warm VM in pool agents", body.Message)
}

func TestAdaptRejectsMalformedJSON(t *testing.T) {
	router := gin.New()
	router.POST("/echo", Adapt(func(ctx *gin.Context, args *echoArgs) (echoResp, error) {
		return echoResp{}, nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{not-json`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "UsageError", body.Error)
}

func TestAdaptNoBodyIgnoresRequestBody(t *testing.T) {
	router := gin.New()
	router.GET("/vms/:name", AdaptNoBody(func(ctx *gin.Context) (echoResp, error) {
		return echoResp{Greeting: ctx.Param("name")}, nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/vms/agents-0", strings.NewReader(`{"greeting":"from-body"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp echoResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "agents-0", resp.Greeting)
}

func TestRenderErrorFallsBackToInternalErrorForPlainErrors(t *testing.T) {
	router := gin.New()
	router.GET("/boom", func(ctx *gin.Context) {
		RenderError(ctx, http.StatusInternalServerError, errors.New("disk full"))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "InternalError", body.Error)
	require.Equal(t, "disk full", body.Message)
}
