// Package httpx adapts gin handler functions to the typed-args/typed-
// result shape the API layer is written in, and renders responses and
// errors consistently. JSON-only (spec.md §6: "all responses are JSON"),
// a trimmed version of pkg/ginx's Adapt4/Adapt5/renderResponse/
// renderError, which also supported XML.
package httpx

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/hyperwake/hyperwake/internal/apierror"
)

// Adapt binds the request body/params into a fresh *TArgs, calls fn, and
// renders the result as JSON. Mirrors pkg/ginx's Adapt5.
func Adapt[TArgs any, TResp any](fn func(*gin.Context, *TArgs) (TResp, error)) gin.HandlerFunc {
	argsType := reflect.TypeOf(*new(TArgs))
	return func(ctx *gin.Context) {
		argsValue := reflect.New(argsType)
		args := argsValue.Interface().(*TArgs)
		if err := bindArgs(ctx, args); err != nil {
			RenderError(ctx, http.StatusBadRequest, apierror.WrapError(apierror.ErrUsage, err.Error(), err))
			return
		}
		result, err := fn(ctx, args)
		if err != nil {
			RenderError(ctx, apierror.HTTPStatus(err), err)
			return
		}
		ctx.JSON(http.StatusOK, result)
	}
}

// AdaptNoBody is Adapt without request binding, for handlers whose only
// input is a URL parameter gin already exposes on *gin.Context.
func AdaptNoBody[TResp any](fn func(*gin.Context) (TResp, error)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, err := fn(ctx)
		if err != nil {
			RenderError(ctx, apierror.HTTPStatus(err), err)
			return
		}
		ctx.JSON(http.StatusOK, result)
	}
}

func bindArgs(ctx *gin.Context, args any) error {
	if ctx.Request.ContentLength == 0 {
		return nil
	}
	return ctx.ShouldBindJSON(args)
}

// errorBody is spec.md §6's error response shape:
// {"error":"<kind>","message":"<detail>"}.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RenderError writes err as spec.md §6's JSON error body.
func RenderError(ctx *gin.Context, statusCode int, err error) {
	if apiErr, ok := err.(*apierror.Error); ok {
		if apiErr.HTTPStatus > 0 {
			statusCode = apiErr.HTTPStatus
		}
		ctx.JSON(statusCode, errorBody{Error: apiErr.Code, Message: apiErr.Message})
		return
	}
	ctx.JSON(statusCode, errorBody{Error: "InternalError", Message: err.Error()})
}
