package service

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed permit.schema.json
var permitSchemaJSON []byte

const permitSchemaURL = "https://ehs.local/schemas/permit.json"

var (
	permitSchema     *jsonschema.Schema
	permitSchemaOnce sync.Once
	permitSchemaErr  error
)

func compiledPermitSchema() (*jsonschema.Schema, error) {
	permitSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(permitSchemaURL, bytes.NewReader(permitSchemaJSON)); err != nil {
			permitSchemaErr = fmt.Errorf("add permit schema: %w", err)
			return
		}
		permitSchema, permitSchemaErr = c.Compile(permitSchemaURL)
	})
	return permitSchema, permitSchemaErr
}

// validatePermitPayload 按内嵌 JSON Schema 校验作业许可请求体
func validatePermitPayload(body []byte) error {
	schema, err := compiledPermitSchema()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return invalid(invalidPermitMessage, err.Error())
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return invalid(invalidPermitMessage, schemaDetails(ve)...)
		}
		return invalid(invalidPermitMessage, err.Error())
	}
	return nil
}

// schemaDetails 展开到叶子错误，格式为 "实例路径: 信息"
func schemaDetails(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + ve.Message}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, schemaDetails(c)...)
	}
	return out
}
