package tools

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

var segmentSchema = json.RawMessage(`{
	"type": "object",
	"required": ["filter"],
	"properties": {
		"filter": {"type": "string"},
		"limit":  {"type": "integer", "minimum": 1}
	}
}`)

func TestValidateArguments_WhenArgumentsMatchSchema_ShouldPass(t *testing.T) {
	args := json.RawMessage(`{"filter": "gender=male", "limit": 10}`)
	if err := ValidateArguments(args, segmentSchema); err != nil {
		t.Errorf("expected valid arguments, got %v", err)
	}
}

func TestValidateArguments_WhenRequiredFieldMissing_ShouldFail(t *testing.T) {
	args := json.RawMessage(`{"limit": 10}`)
	err := ValidateArguments(args, segmentSchema)
	if err == nil {
		t.Fatal("expected validation failure for missing required field")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("unexpected error: %v", err)
	}
	if errors.Is(err, ErrSchemaUnusable) {
		t.Error("a valid schema must not be reported as unusable")
	}
}

func TestValidateArguments_WhenFieldHasWrongType_ShouldFail(t *testing.T) {
	args := json.RawMessage(`{"filter": "x", "limit": "ten"}`)
	if err := ValidateArguments(args, segmentSchema); err == nil {
		t.Error("expected validation failure for wrong type")
	}
}

func TestValidateArguments_WhenSchemaIsGarbage_ShouldReturnErrSchemaUnusable(t *testing.T) {
	args := json.RawMessage(`{"filter": "x"}`)
	err := ValidateArguments(args, json.RawMessage(`not a schema at all`))
	if !errors.Is(err, ErrSchemaUnusable) {
		t.Errorf("expected ErrSchemaUnusable, got %v", err)
	}
}

func TestValidateArguments_WhenArgumentsAreInvalidJSON_ShouldFail(t *testing.T) {
	err := ValidateArguments(json.RawMessage(`{broken`), segmentSchema)
	if err == nil {
		t.Fatal("expected error for invalid JSON input")
	}
	if !strings.Contains(err.Error(), "invalid JSON input") {
		t.Errorf("unexpected error: %v", err)
	}
}
