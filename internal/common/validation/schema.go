package validation

import (
	"fmt"
	"sort"

	"application-board/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema defines the structure for input schemas. It marshals to draft-07 JSON.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties *bool               `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (r *ValidationResult) Error() string {
	if r.Valid || len(r.Errors) == 0 {
		return ""
	}
	msg := r.Errors[0].Field + ": " + r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(r.Errors)-1)
	}
	return msg
}

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

// ListApplicationsInputSchema guards the list-applications job.
func ListApplicationsInputSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"userId": {Type: "string", Description: "external auth id of the board owner", MinLength: intPtr(1)},
		},
		Required: []string{"userId"},
	}
}

// UpdateStatusInputSchema guards the update-application-status job. Status is the closed enum.
func UpdateStatusInputSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"applicationId": {Type: "string", MinLength: intPtr(1)},
			"status":        {Type: "string", Enum: models.StatusNames()},
			"userId":        {Type: "string"},
		},
		Required:             []string{"applicationId", "status"},
		AdditionalProperties: boolPtr(true),
	}
}

// ValidateInput validates input against schema with gojsonschema and flattens the errors.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(input),
	)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "SCHEMA_ERROR"}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &ValidationResult{Valid: false, Errors: errs}
}
