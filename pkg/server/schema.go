package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var noAdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}

var notificationSchema = mustResolve(&jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"notificationId": {Type: "string", MinLength: jsonschema.Ptr(1), MaxLength: jsonschema.Ptr(256)},
		"packageName":    {Type: "string", MinLength: jsonschema.Ptr(1), MaxLength: jsonschema.Ptr(256)},
		"appName":        {Type: "string", MinLength: jsonschema.Ptr(1), MaxLength: jsonschema.Ptr(128)},
		"title":          {Type: "string", MaxLength: jsonschema.Ptr(512)},
		"text":           {Type: "string", MaxLength: jsonschema.Ptr(4000)},
		"time":           {Type: "integer", ExclusiveMinimum: jsonschema.Ptr(0.0)},
		"isOngoing":      {Type: "boolean"},
	},
	Required:             []string{"notificationId", "packageName", "appName", "time"},
	AdditionalProperties: noAdditionalProperties,
})

var querySchema = mustResolve(&jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"query": {Type: "string", MinLength: jsonschema.Ptr(1), MaxLength: jsonschema.Ptr(2000)},
		"topK": {
			Types:   []string{"integer", "null"},
			Minimum: jsonschema.Ptr(float64(model.MinTopK)),
			Maximum: jsonschema.Ptr(float64(model.MaxRequestTopK)),
		},
	},
	Required:             []string{"query"},
	AdditionalProperties: noAdditionalProperties,
})

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	resolved, err := s.Resolve(nil)
	if err != nil {
		panic("invalid request schema: " + err.Error())
	}
	return resolved
}

// decodeBody validates the JSON body against schema and then decodes it into dst
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Resolved, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return goerr.Wrap(err, "failed to read request body", goerr.T(model.TagValidation))
	}

	var instance any
	if err := json.Unmarshal(body, &instance); err != nil {
		return goerr.Wrap(err, "request body is not valid JSON", goerr.T(model.TagValidation))
	}
	if err := schema.Validate(instance); err != nil {
		return goerr.Wrap(err, "request body does not match schema", goerr.T(model.TagValidation))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return goerr.Wrap(err, "failed to decode request body", goerr.T(model.TagValidation))
	}
	return nil
}
