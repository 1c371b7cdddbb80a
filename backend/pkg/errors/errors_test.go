package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestIsErrorType(t *testing.T) {
	extractionErr := NewExtractionMalformed("garbage", stderrors.New("unexpected token"))
	if !IsErrorType(extractionErr, ErrorTypeExtraction) {
		t.Error("Expected extraction category")
	}
	if IsErrorType(extractionErr, ErrorTypeStorage) {
		t.Error("Wrong category matched")
	}

	// Category survives fmt.Errorf wrapping
	wrapped := fmt.Errorf("run failed: %w", extractionErr)
	if !IsErrorType(wrapped, ErrorTypeExtraction) {
		t.Error("Expected category to survive wrapping")
	}

	if IsErrorType(stderrors.New("plain"), ErrorTypeExtraction) {
		t.Error("Plain error must not match any category")
	}
	if IsErrorType(nil, ErrorTypeExtraction) {
		t.Error("nil must not match any category")
	}
}

func TestIsStorageConflict(t *testing.T) {
	conflict := NewStorageConflict("p1|person|sarah", stderrors.New("constraint violation"))
	if !IsStorageConflict(conflict) {
		t.Error("Expected conflict detection")
	}
	if !IsStorageConflict(fmt.Errorf("upsert: %w", conflict)) {
		t.Error("Expected conflict detection through wrapping")
	}
	if IsStorageConflict(NewNotFound("node", "x")) {
		t.Error("NotFound is not a conflict")
	}
	if IsStorageConflict(nil) {
		t.Error("nil is not a conflict")
	}
}

func TestBaseError_Message(t *testing.T) {
	err := NewInvalidRelation("summons", "not in vocabulary")
	msg := err.Error()
	if msg == "" {
		t.Fatal("Expected non-empty message")
	}
	if err.RelationType != "summons" {
		t.Errorf("Expected relation type preserved, got %q", err.RelationType)
	}
	if err.Category() != ErrorTypeRelation {
		t.Errorf("Expected relation category, got %s", err.Category())
	}
}

func TestUnwrap(t *testing.T) {
	inner := stderrors.New("socket closed")
	err := NewGraphConnectionFailed("bolt://localhost:7687", inner)
	if !stderrors.Is(err, inner) {
		t.Error("Expected errors.Is to reach the wrapped cause")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewStorageConflict("key", nil)) {
		t.Error("Storage conflicts are retryable")
	}
	if !IsRetryable(NewGraphQueryFailed("upsert node", stderrors.New("timeout"))) {
		t.Error("Graph failures are retryable")
	}
	if IsRetryable(NewExtractionMalformed("garbage", nil)) {
		t.Error("Malformed output is not retryable")
	}
	if !IsRetryable(NewAgentLLMFailed("model", 3, true, nil)) {
		t.Error("Retryable LLM failure must report retryable")
	}
	if IsRetryable(NewAgentLLMFailed("model", 3, false, nil)) {
		t.Error("Non-retryable LLM failure must not report retryable")
	}
}
