package httpadapter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openAPISpec []byte

// OpenAPISpec is the raw document served at /openapi.yaml.
func OpenAPISpec() []byte {
	return openAPISpec
}

func loadOpenAPI(ctx context.Context) (routers.Router, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return router, nil
}

// openAPIValidationMiddleware checks path, query and header parameters
// against the document. Bodies are left to the handlers so uploads are
// streamed once. Paths outside the document pass through.
func openAPIValidationMiddleware(router routers.Router, next http.Handler) http.Handler {
	options := &openapi3filter.Options{ExcludeRequestBody: true}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := router.FindRoute(r)
		if err != nil {
			if isMethodNotAllowed(err) {
				writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, r, validationStatus(err), validationMessage(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isMethodNotAllowed(err error) bool {
	if errors.Is(err, routers.ErrMethodNotAllowed) {
		return true
	}
	var routeErr *routers.RouteError
	return errors.As(err, &routeErr) && routeErr.Reason == routers.ErrMethodNotAllowed.Error()
}

func validationStatus(err error) int {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Parameter != nil &&
		reqErr.Parameter.In == openapi3.ParameterInHeader && reqErr.Parameter.Name == userIDHeader {
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}

func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			reason := reqErr.Reason
			if reason == "" && reqErr.Err != nil {
				reason = reqErr.Err.Error()
			}
			return fmt.Sprintf("invalid %s parameter %q: %s", reqErr.Parameter.In, reqErr.Parameter.Name, reason)
		}
		return reqErr.Error()
	}
	return err.Error()
}
