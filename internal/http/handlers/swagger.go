package handlers

import (
	_ "embed"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// openAPIJSON is the same document for tools that only read JSON. A broken
// embedded document fails at startup rather than on first request.
var openAPIJSON = mustYAMLToJSON(openAPIYAML)

func mustYAMLToJSON(src []byte) []byte {
	out, err := yaml.YAMLToJSON(src)
	if err != nil {
		panic(fmt.Sprintf("embedded openapi.yaml: %v", err))
	}
	return out
}

const docsPage = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <title>TutorHub API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="docs"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      SwaggerUIBundle({ url: "/docs/openapi.json", dom_id: "#docs", deepLinking: true });
    </script>
  </body>
</html>`

func SwaggerUI(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsPage))
}

func OpenAPISpec(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "application/yaml", openAPIYAML)
}

func OpenAPISpecJSON(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "application/json", openAPIJSON)
}

// DocumentedRoutes lists "METHOD /path" for every operation in the embedded
// document, with path parameters in gin's ":id" form.
func DocumentedRoutes() ([]string, error) {
	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, err
	}

	var out []string
	for path, ops := range doc.Paths {
		for key := range ops {
			switch method := strings.ToUpper(key); method {
			case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
				out = append(out, method+" "+ginPath(path))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

var pathParams = strings.NewReplacer("{", ":", "}", "")

func ginPath(openapi string) string {
	return pathParams.Replace(openapi)
}
