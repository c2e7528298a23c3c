package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/adcompliance/domain/tool"
)

func echoHandler(_ context.Context, input json.RawMessage) (tool.Result, error) {
	return tool.NewResult(string(input)), nil
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	tl, err := tool.NewBuilder("verify_dates").
		WithDescription("checks dates").
		ForStage("dates_verification").
		WithTags("vision").
		WithHandler(echoHandler).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if tl.Name() != "verify_dates" {
		t.Errorf("Name() = %s, want verify_dates", tl.Name())
	}
	if tl.Description() != "checks dates" {
		t.Errorf("Description() = %s, want checks dates", tl.Description())
	}
	if tl.Annotations().Stage != "dates_verification" {
		t.Errorf("Stage = %s, want dates_verification", tl.Annotations().Stage)
	}
	if !tl.Annotations().HasTag("vision") {
		t.Error("HasTag(vision) = false, want true")
	}
}

func TestBuilder_Errors(t *testing.T) {
	t.Parallel()

	if _, err := tool.NewBuilder("").WithHandler(echoHandler).Build(); !errors.Is(err, tool.ErrEmptyName) {
		t.Errorf("Build() error = %v, want ErrEmptyName", err)
	}
	if _, err := tool.NewBuilder("x").Build(); !errors.Is(err, tool.ErrNoHandler) {
		t.Errorf("Build() error = %v, want ErrNoHandler", err)
	}
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("MustBuild() should panic without a name")
		}
	}()
	tool.NewBuilder("").MustBuild()
}

func TestDefinition_ExecuteValidatesInput(t *testing.T) {
	t.Parallel()

	tl := tool.NewBuilder("get_clarifications").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"questions": tool.StringProperty("the questions"),
		}, "questions")).
		WithHandler(echoHandler).
		MustBuild()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", `{"questions":"Quelle est la date ?"}`, false},
		{"missing", `{}`, true},
		{"empty", `{"questions":"  "}`, true},
		{"wrong type", `{"questions":42}`, true},
		{"not an object", `"hello"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tl.Execute(context.Background(), json.RawMessage(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tool.ErrInvalidInput) {
				t.Errorf("Execute() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestDefinition_ExecuteEmptyInput(t *testing.T) {
	t.Parallel()

	tl := tool.NewBuilder("analyze_compliance").WithHandler(echoHandler).MustBuild()

	result, err := tl.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Output != "{}" {
		t.Errorf("Output = %s, want {}", result.Output)
	}
}

func TestSchema_Signature(t *testing.T) {
	t.Parallel()

	s := tool.ObjectSchema(map[string]tool.Property{
		"image_path":         tool.StringProperty("path"),
		"vision_description": tool.StringProperty("desc"),
	}, "image_path")

	got := s.Signature("analyze_vision")
	want := "analyze_vision(image_path, vision_description?)"
	if got != want {
		t.Errorf("Signature() = %s, want %s", got, want)
	}

	if got := tool.EmptySchema().Signature("analyze_compliance"); got != "analyze_compliance()" {
		t.Errorf("Signature() = %s, want analyze_compliance()", got)
	}
}
