package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"reflect"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

const bearerScheme = "bearerAuth"

// apiDocs serves the OpenAPI document of api and a Swagger UI page for it. The document
// is rendered on first request, after every operation has been registered.
type apiDocs struct {
	api      huma.API
	basePath string
	secured  bool

	once sync.Once
	doc  []byte
	err  error
}

func (d *apiDocs) specPath() string {
	return path.Join("/", d.basePath, "openapi.json")
}

func (d *apiDocs) healthPath() string {
	return path.Join("/", d.basePath, "health")
}

func (d *apiDocs) document() ([]byte, error) {
	d.once.Do(func() {
		oas := d.api.OpenAPI()
		if oas.Components == nil {
			oas.Components = &huma.Components{}
		}
		errSchema := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
		var security []map[string][]string
		if d.secured {
			if oas.Components.SecuritySchemes == nil {
				oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
			}
			oas.Components.SecuritySchemes[bearerScheme] = &huma.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			}
			security = []map[string][]string{{bearerScheme: {}}}
			oas.Security = security
		}
		for route, item := range oas.Paths {
			for _, op := range []*huma.Operation{item.Get, item.Post, item.Put, item.Patch, item.Delete} {
				if op == nil {
					continue
				}
				if op.Responses == nil {
					op.Responses = map[string]*huma.Response{}
				}
				op.Responses["default"] = &huma.Response{
					Description: "Error envelope",
					Content:     map[string]*huma.MediaType{"application/json": {Schema: errSchema}},
				}
				switch {
				case !d.secured:
				case route == d.healthPath():
					op.Security = []map[string][]string{}
				default:
					op.Security = security
				}
			}
		}
		d.doc, d.err = json.Marshal(oas)
	})
	return d.doc, d.err
}

func (d *apiDocs) serveSpec(w http.ResponseWriter, _ *http.Request) {
	doc, err := d.document()
	if err != nil {
		respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "render openapi document", nil))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

func (d *apiDocs) serveUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, docsPage, d.specPath())
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<title>taskgen API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
<script>window.onload = () => SwaggerUIBundle({url: %q, dom_id: "#swagger-ui"});</script>
</body>
</html>
`
