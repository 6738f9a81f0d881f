package api

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	nethttpmiddleware "github.com/oapi-codegen/nethttp-middleware"
)

//go:embed openapi.yaml
var openapiDoc []byte

// loadSwagger parses the embedded OpenAPI document describing every route registered in
// routes(). Request bodies are intentionally left undeclared on each operation: manifest
// uploads are YAML, not JSON, and declaring a permissive requestBody per operation would
// buy nothing kin-openapi doesn't already skip when an operation has none - path, method
// and query/path parameter shape are what this document exists to police.
func loadSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiDoc)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validating embedded openapi document: %w", err)
	}
	return doc, nil
}

// requestValidationMiddleware builds the middleware that rejects requests whose method,
// path or parameters don't match the embedded document, the same request-shape guard the
// teacher's generated resource server gets for free from its oapi-codegen scaffolding.
func requestValidationMiddleware() (func(http.Handler) http.Handler, error) {
	swagger, err := loadSwagger()
	if err != nil {
		return nil, err
	}
	return nethttpmiddleware.OapiRequestValidator(swagger), nil
}
