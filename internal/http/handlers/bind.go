package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes the body into out and writes a 400 when that fails.
// Unknown fields are ignored; only the fields out declares are read.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "invalid_input", "Request body too large", nil)
		return false
	}

	message, details := describeBindError(err, out)
	RespondBadRequest(ctx, message, details)

	return false
}

func describeBindError(err error, out interface{}) (string, interface{}) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		rootType := structType(out)
		fields := make([]FieldError, 0, len(validationErrs))

		for _, fe := range validationErrs {
			fields = append(fields, FieldError{
				Field:   jsonFieldName(rootType, fe.StructField()),
				Rule:    fe.Tag(),
				Message: ruleMessage(fe.Tag()),
			})
		}

		return "Please provide all required fields", gin.H{"fields": fields}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := jsonFieldName(structType(out), typeErr.Field)
		return "Invalid request body", gin.H{"fields": []FieldError{{
			Field:   field,
			Rule:    "type",
			Message: "must be of type " + typeErr.Type.String(),
		}}}
	}

	if errors.Is(err, io.EOF) {
		return "Request body is required", nil
	}

	// syntax errors and anything else the decoder rejects
	return "Invalid request body", nil
}

func structType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonFieldName maps a Go field name to the name clients sent. Request types
// are flat, so only the top level is looked up.
func jsonFieldName(root reflect.Type, goName string) string {
	goName = strings.TrimSpace(goName)
	if root == nil || goName == "" {
		return goName
	}

	// decoder paths may already be json names
	sf, ok := root.FieldByName(goName)
	if !ok {
		return goName
	}

	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func ruleMessage(rule string) string {
	switch rule {
	case "required":
		return "is required"
	default:
		return "failed " + rule + " validation"
	}
}
