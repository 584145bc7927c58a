package response

import "reflect"

// ImportPath is the path module scripts import this package under.
const ImportPath = "github.com/mambaweb/mamba/web/response"

// Symbols exposes this package to interpreted module files, keyed the way
// yaegi expects ("<import path>/<package name>").
var Symbols = map[string]map[string]reflect.Value{
	ImportPath + "/response": {
		"Response":      reflect.ValueOf((*Response)(nil)),
		"StatusUnknown": reflect.ValueOf(StatusUnknown),

		"New":                 reflect.ValueOf(New),
		"Ok":                  reflect.ValueOf(Ok),
		"Created":             reflect.ValueOf(Created),
		"Unknown":             reflect.ValueOf(Unknown),
		"MovedPermanently":    reflect.ValueOf(MovedPermanently),
		"Found":               reflect.ValueOf(Found),
		"SeeOther":            reflect.ValueOf(SeeOther),
		"BadRequest":          reflect.ValueOf(BadRequest),
		"Unauthorized":        reflect.ValueOf(Unauthorized),
		"Forbidden":           reflect.ValueOf(Forbidden),
		"NotFound":            reflect.ValueOf(NotFound),
		"Conflict":            reflect.ValueOf(Conflict),
		"AlreadyExists":       reflect.ValueOf(AlreadyExists),
		"InternalServerError": reflect.ValueOf(InternalServerError),
		"NotImplemented":      reflect.ValueOf(NotImplemented),
	},
}
