package model_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/adcompliance/domain/model"
)

func TestMessage_TextContent(t *testing.T) {
	t.Parallel()

	msg := model.UserMessage(model.Text("a"), model.Image([]byte{1}, "image/png"), model.Text("b"))
	if got := msg.TextContent(); got != "a\nb" {
		t.Errorf("TextContent() = %q, want %q", got, "a\nb")
	}
	if !msg.HasImage() {
		t.Error("HasImage() = false, want true")
	}
	if model.SystemMessage("x").HasImage() {
		t.Error("system message should not carry an image")
	}
}

func TestPart_DataURL(t *testing.T) {
	t.Parallel()

	got := model.Image([]byte("hi"), "image/png").DataURL()
	if got != "data:image/png;base64,aGk=" {
		t.Errorf("DataURL() = %q", got)
	}
	if !strings.HasPrefix(model.Image(nil, "").DataURL(), "data:image/jpeg;base64,") {
		t.Error("DataURL() should default to image/jpeg")
	}
}

func TestUsage_Add(t *testing.T) {
	t.Parallel()

	got := model.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}.
		Add(model.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	want := model.Usage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}
	if got != want {
		t.Errorf("Add() = %+v, want %+v", got, want)
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	err := error(&model.APIError{StatusCode: 429, Type: "rate_limit", Message: "slow down"})
	if !errors.Is(err, model.ErrModelCall) {
		t.Error("APIError should match ErrModelCall")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || !apiErr.Retryable() {
		t.Error("429 should be retryable")
	}
	if got := err.Error(); got != "429 rate_limit: slow down" {
		t.Errorf("Error() = %q", got)
	}
	if (&model.APIError{StatusCode: 400}).Retryable() {
		t.Error("400 should not be retryable")
	}
}
