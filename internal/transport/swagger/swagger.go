package swagger

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

const DocumentPath = "/openapi.yml"

// Handler serves Swagger UI pointed at the embedded OpenAPI document.
func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL(DocumentPath),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DeepLinking(true),
	)
}

// Document serves the raw OpenAPI YAML.
func Document(spec []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(spec)
	}
}
