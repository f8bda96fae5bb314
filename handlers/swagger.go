package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>students-calendar Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "students-calendar", "version": "v1.0.0" },
  "components": {
    "schemas": {
      "Student": {"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"},"price":{"type":"number","default":170}}},
      "Error": {"type":"object","properties":{"error":{"type":"string"},"authUrl":{"type":"string"}}}
    }
  },
  "paths": {
    "/api/students": {
      "get": { "summary": "List the roster", "responses": { "200": { "description": "students; ETag carries the revision" } } }
    },
    "/api/students/save": {
      "post": {
        "summary": "Replace the roster",
        "parameters": [{"name":"If-Match","in":"header","schema":{"type":"string"}}],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"students":{"type":"array","items":{"$ref":"#/components/schemas/Student"}},"revision":{"type":"string"}}}}}},
        "responses": { "200": { "description": "saved" }, "400": { "description": "invalid roster" }, "409": { "description": "revision conflict" } }
      }
    },
    "/api/calendar/events": {
      "get": {
        "summary": "Lessons in a window with payment status",
        "parameters": [{"name":"from","in":"query","schema":{"type":"string"}},{"name":"to","in":"query","schema":{"type":"string"}}],
        "responses": { "200": { "description": "merged lessons; paymentStatus is \"not yet paid\" for lessons without a payment record" }, "401": { "description": "calendar not authorized; authUrl returned" } }
      }
    },
    "/api/payments/save": {
      "post": {
        "summary": "Record a lesson's payment status",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"lessonKey":{"type":"string"},"status":{"type":"string"}}}}}},
        "responses": { "200": { "description": "recorded" }, "400": { "description": "missing lessonKey or status" }, "409": { "description": "ledger changed concurrently" } }
      }
    },
    "/api/auth/google": { "get": { "summary": "Redirect to Google consent", "responses": { "302": { "description": "redirect" } } } },
    "/api/auth/status": { "get": { "summary": "Whether a calendar credential is held", "responses": { "200": { "description": "status" } } } },
    "/oauth2callback": { "get": { "summary": "Google consent callback", "responses": { "200": { "description": "credential saved" }, "400": { "description": "missing code or bad state" }, "403": { "description": "not the tutor's account" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
