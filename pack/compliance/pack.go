// Package compliance provides the advertisement compliance tools. A pack is
// bound to the analysis state of one file.
package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/analysis"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	"github.com/felixgeelhaar/adcompliance/domain/pack"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
	"github.com/felixgeelhaar/adcompliance/infrastructure/retrieval"
)

// Tool names, in the order they are registered.
const (
	ToolExtractRawText    = "extract_raw_text"
	ToolAnalyzeVision     = "analyze_vision"
	ToolVerifyConsistency = "verify_consistency"
	ToolVerifyDates       = "verify_dates"
	ToolSearchLegislation = "search_legislation"
	ToolGetClarifications = "get_clarifications"
	ToolAnalyzeCompliance = "analyze_compliance"
)

// DateLayout is the day/month/year format given to the model.
const DateLayout = "02/01/2006"

// ErrNoModel is returned by New without a model.
var ErrNoModel = errors.New("compliance pack requires a model")

// Retriever finds and synthesizes legislation.
type Retriever interface {
	Search(ctx context.Context, query string) (retrieval.Retrieval, error)
	Query(ctx context.Context, text string) (string, error)
}

// Config configures the pack.
type Config struct {
	// Model answers every stage prompt.
	Model model.Model
	// Retriever backs search_legislation.
	Retriever Retriever
	// State is the analysis the tools read and write.
	State *analysis.State
	// Now is the clock used for the current date (default time.Now).
	Now func() time.Time
	// ReadFile loads images (default os.ReadFile).
	ReadFile func(path string) ([]byte, error)
}

type tools struct {
	cfg Config
}

// New creates the compliance pack for one analysis.
func New(cfg Config) (*pack.Pack, error) {
	if cfg.Model == nil {
		return nil, ErrNoModel
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("%w: nil analysis state", pack.ErrInvalidPack)
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("%w: nil retriever", pack.ErrInvalidPack)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ReadFile == nil {
		cfg.ReadFile = os.ReadFile
	}
	t := &tools{cfg: cfg}

	return pack.NewBuilder("compliance").
		WithDescription("Advertisement compliance analysis tools").
		WithVersion("1.0.0").
		WithInstruction(Instruction).
		WithMetadata("language", "fr").
		AddTools(
			t.extractRawText(),
			t.analyzeVision(),
			t.verifyConsistency(),
			t.verifyDates(),
			t.searchLegislation(),
			t.getClarifications(),
			t.analyzeCompliance(),
		).
		Build(), nil
}

var (
	imageSchema = tool.ObjectSchema(map[string]tool.Property{
		"image_path": tool.StringProperty("Chemin de l'image (par défaut l'image analysée)"),
	})
	descriptionSchema = tool.ObjectSchema(map[string]tool.Property{
		"vision_description": tool.StringProperty("Description de l'image (par défaut celle de analyze_vision)"),
	})
	questionsSchema = tool.ObjectSchema(map[string]tool.Property{
		"questions": tool.StringProperty("Questions précises nécessitant des clarifications"),
	}, "questions")
)

type imageInput struct {
	ImagePath string `json:"image_path"`
}

type descriptionInput struct {
	VisionDescription string `json:"vision_description"`
}

type questionsInput struct {
	Questions string `json:"questions"`
}

func decode(input json.RawMessage, v any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("%w: %v", tool.ErrInvalidInput, err)
	}
	return nil
}

func (t *tools) extractRawText() tool.Tool {
	return tool.NewBuilder(ToolExtractRawText).
		WithDescription("Extrait le texte brut visible sur l'image, sans aucune correction orthographique.").
		WithInputSchema(imageSchema).
		ForStage(string(analysis.StageRawText)).
		WithTags("vision", "ocr").
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			var in imageInput
			if err := decode(input, &in); err != nil {
				return tool.Result{}, err
			}
			img, err := t.image(in.ImagePath)
			if err != nil {
				return tool.Result{}, err
			}
			resp, err := t.cfg.Model.Chat(ctx, []model.Message{model.UserMessage(model.Text(rawTextPrompt), img)})
			if err != nil {
				return tool.Result{}, err
			}
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				logging.Warn().
					Add(logging.RunID(t.cfg.State.RunID())).
					Add(logging.ToolName(ToolExtractRawText)).
					Msg("no raw text extracted")
				return tool.NewResult(emptyRawTextNote), nil
			}
			t.cfg.State.SetRawText(text)
			return tool.NewResult(text), nil
		}).
		MustBuild()
}

func (t *tools) analyzeVision() tool.Tool {
	return tool.NewBuilder(ToolAnalyzeVision).
		WithDescription("Analyse une image publicitaire et fournit une description détaillée structurée. Utilisez cet outil pour obtenir une description de l'image.").
		WithInputSchema(imageSchema).
		ForStage(string(analysis.StageVision)).
		WithTags("vision").
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			var in imageInput
			if err := decode(input, &in); err != nil {
				return tool.Result{}, err
			}
			img, err := t.image(in.ImagePath)
			if err != nil {
				return tool.Result{}, err
			}
			prompt := descriptionPrompt
			if raw := t.cfg.State.RawText(); raw != "" {
				prompt += fmt.Sprintf(rawTextReference, raw)
			}
			resp, err := t.cfg.Model.Chat(ctx, []model.Message{model.UserMessage(model.Text(prompt), img)})
			if err != nil {
				return tool.Result{}, err
			}
			if strings.TrimSpace(resp.Text) == "" {
				return tool.Result{}, fmt.Errorf("%w: empty vision description", model.ErrEmptyResponse)
			}
			t.cfg.State.SetVisionDescription(resp.Text)
			return tool.NewResult(resp.Text), nil
		}).
		MustBuild()
}

func (t *tools) verifyConsistency() tool.Tool {
	return tool.NewBuilder(ToolVerifyConsistency).
		WithDescription("Vérifie la cohérence des informations (orthographe, adresse, téléphone, email, url) après l'analyse visuelle.").
		WithInputSchema(descriptionSchema).
		ForStage(string(analysis.StageConsistency)).
		WithTags("verification").
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			desc, err := t.description(input, analysis.StageConsistency)
			if err != nil {
				return tool.Result{}, err
			}
			out, err := t.askWithImage(ctx, fmt.Sprintf(consistencyPrompt, desc, t.today()))
			if err != nil {
				return tool.Result{}, err
			}
			t.cfg.State.SetConsistencyReport(out)
			return tool.NewResult(out), nil
		}).
		MustBuild()
}

func (t *tools) verifyDates() tool.Tool {
	return tool.NewBuilder(ToolVerifyDates).
		WithDescription("Vérifie les dates de l'offre (validité, cohérence jour/date, offres expirées) après l'analyse visuelle.").
		WithInputSchema(descriptionSchema).
		ForStage(string(analysis.StageDates)).
		WithTags("verification", "dates").
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			desc, err := t.description(input, analysis.StageDates)
			if err != nil {
				return tool.Result{}, err
			}
			out, err := t.askWithImage(ctx, fmt.Sprintf(datesPrompt, desc, t.today()))
			if err != nil {
				return tool.Result{}, err
			}
			t.cfg.State.SetDatesReport(out)
			return tool.NewResult(out), nil
		}).
		MustBuild()
}

func (t *tools) searchLegislation() tool.Tool {
	return tool.NewBuilder(ToolSearchLegislation).
		WithDescription("Recherche la législation applicable en fonction de la description de l'image. À utiliser après analyze_vision.").
		WithInputSchema(descriptionSchema).
		ReadOnly().
		ForStage(string(analysis.StageLegislation)).
		WithTags("retrieval").
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			desc, err := t.description(input, analysis.StageLegislation)
			if err != nil {
				return tool.Result{}, err
			}
			found, err := t.cfg.Retriever.Search(ctx, desc)
			if err != nil {
				return tool.Result{}, err
			}
			t.cfg.State.SetLegislationText(found.Text)

			synthesis, err := t.cfg.Retriever.Query(ctx, fmt.Sprintf(synthesisPrompt, desc, found.Text))
			if err != nil || strings.TrimSpace(synthesis) == "" {
				logging.Warn().
					Add(logging.RunID(t.cfg.State.RunID())).
					Add(logging.ToolName(ToolSearchLegislation)).
					Add(logging.ErrorField(err)).
					Msg("legislation synthesis failed, returning raw legislation")
				synthesis = found.Text
			}
			if found.Cached {
				return tool.NewCachedResult(synthesis), nil
			}
			return tool.NewResult(synthesis), nil
		}).
		MustBuild()
}

func (t *tools) getClarifications() tool.Tool {
	return tool.NewBuilder(ToolGetClarifications).
		WithDescription("Obtient des clarifications spécifiques sur des aspects de la publicité en se basant sur la vision et la législation.").
		WithInputSchema(questionsSchema).
		ForStage(string(analysis.StageClarifications)).
		WithTags("vision").
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			var in questionsInput
			if err := decode(input, &in); err != nil {
				return tool.Result{}, err
			}
			questions := strings.TrimSpace(in.Questions)
			if questions == "" {
				return tool.Result{}, fmt.Errorf("%w: questions must not be empty", tool.ErrInvalidInput)
			}
			if err := t.cfg.State.Require(analysis.StageClarifications); err != nil {
				return tool.Result{}, err
			}
			if t.cfg.State.WasAsked(questions) {
				return tool.NewCachedResult(analysis.AlreadyAsked), nil
			}
			out, err := t.askWithImage(ctx, fmt.Sprintf(clarificationsPrompt, questions))
			if err != nil {
				return tool.Result{}, err
			}
			t.cfg.State.MarkAsked(questions)
			t.cfg.State.AddClarification(out)
			return tool.NewResult(out), nil
		}).
		MustBuild()
}

func (t *tools) analyzeCompliance() tool.Tool {
	return tool.NewBuilder(ToolAnalyzeCompliance).
		WithDescription("Analyse finale de la conformité de la publicité en combinant tous les résultats précédents.").
		WithInputSchema(tool.EmptySchema()).
		Final().
		ForStage(string(analysis.StageCompliance)).
		WithTags("verdict").
		WithHandler(func(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
			s := t.cfg.State
			if err := s.Require(analysis.StageCompliance); err != nil {
				return tool.Result{}, err
			}

			var extra strings.Builder
			for _, section := range []struct {
				title string
				text  string
			}{
				{"VÉRIFICATION DE COHÉRENCE", s.ConsistencyReport()},
				{"VÉRIFICATION DES DATES", s.DatesReport()},
				{"CLARIFICATIONS", s.Clarifications()},
			} {
				if section.text != "" {
					fmt.Fprintf(&extra, "\n%s :\n%s\n", section.title, section.text)
				}
			}

			resp, err := t.cfg.Model.Complete(ctx, fmt.Sprintf(legalPrompt, s.VisionDescription(), s.LegislationText(), extra.String()))
			if err != nil {
				return tool.Result{}, err
			}
			verdict := analysis.EnsureLevel(resp.Text)
			s.SetVerdict(verdict)
			return tool.NewResult(verdict), nil
		}).
		MustBuild()
}

// description returns the explicit description input, or the stored one,
// after checking the stage preconditions.
func (t *tools) description(input json.RawMessage, stage analysis.Stage) (string, error) {
	var in descriptionInput
	if err := decode(input, &in); err != nil {
		return "", err
	}
	if err := t.cfg.State.Require(stage); err != nil {
		return "", err
	}
	if desc := strings.TrimSpace(in.VisionDescription); desc != "" {
		return desc, nil
	}
	return t.cfg.State.VisionDescription(), nil
}

func (t *tools) image(path string) (model.Part, error) {
	if path == "" {
		path = t.cfg.State.ImagePath()
	}
	data, err := t.cfg.ReadFile(path)
	if err != nil {
		return model.Part{}, fmt.Errorf("open image %s: %w", path, err)
	}
	return model.Image(data, mimeType(path)), nil
}

func (t *tools) askWithImage(ctx context.Context, prompt string) (string, error) {
	img, err := t.image("")
	if err != nil {
		return "", err
	}
	resp, err := t.cfg.Model.Chat(ctx, []model.Message{model.UserMessage(model.Text(prompt), img)})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (t *tools) today() string {
	return t.cfg.Now().Format(DateLayout)
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
