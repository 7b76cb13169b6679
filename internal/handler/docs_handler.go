package handler

import (
	"net/http"
	"os"
	"strings"

	"byd90-backend/pkg/apierror"
)

// DocsHandler serves the OpenAPI document from disk and a Swagger UI page pointing at it.
type DocsHandler struct {
	specPath string
	title    string
}

func NewDocsHandler(specPath, title string) *DocsHandler {
	return &DocsHandler{specPath: strings.TrimSpace(specPath), title: title}
}

func (h *DocsHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.specPath == "" {
		writeError(w, r, apierror.NotFound("openapi document not configured"))
		return
	}

	content, err := os.ReadFile(h.specPath)
	if err != nil {
		writeError(w, r, apierror.NotFound("openapi document not found"))
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *DocsHandler) SwaggerUI(w http.ResponseWriter, _ *http.Request) {
	title := "API Docs"
	if h != nil && h.title != "" {
		title = h.title + " API Docs"
	}

	w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' https://unpkg.com; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https://validator.swagger.io")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>` + title + `</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>body{margin:0;background:#fafafa;}#swagger-ui{max-width:1200px;margin:0 auto;}</style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
        deepLinking: true,
        displayRequestDuration: true,
        persistAuthorization: true
      });
    </script>
  </body>
</html>`))
}
