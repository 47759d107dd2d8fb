package nace

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/vectorstore"
	"github.com/sells-group/mne-enrich/pkg/anthropic"
)

// DefaultTopK is the number of divisions retrieved per classification.
const DefaultTopK = 20

const queryInstruction = "Instruct: Given a description of a company, retrieve relevant NACE codes that describe its activities.\nQuery: "

const classifierSystemPrompt = `You are an expert in the NACE Rev. 2 statistical classification of economic activities.
Given the description of a multinational enterprise, select the single NACE division that best describes its main activity.
Only answer with one of the proposed codes. Read the inclusion and exclusion notes carefully.`

const classifierUserPrompt = `Activity description:
%s

Proposed NACE divisions:

%s

Answer with exactly one of these codes: %s`

// ErrUnknownCode is returned when the model picks a code outside the
// retrieved candidates or one without a section.
var ErrUnknownCode = eris.New("nace: code outside candidate set")

// ErrNoCandidates is returned when retrieval yields nothing to choose from.
var ErrNoCandidates = eris.New("nace: no candidate codes retrieved")

// ClassifierConfig configures the classifier.
type ClassifierConfig struct {
	Model     string
	MaxTokens int64
	TopK      int
}

// Classifier maps activity text to a section-prefixed NACE division code
// (e.g. "K64").
type Classifier struct {
	searcher vectorstore.Searcher
	llm      anthropic.Client
	cfg      ClassifierConfig
}

// NewClassifier creates a Classifier.
func NewClassifier(searcher vectorstore.Searcher, llm anthropic.Client, cfg ClassifierConfig) *Classifier {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 256
	}
	return &Classifier{searcher: searcher, llm: llm, cfg: cfg}
}

type activity struct {
	Code string `json:"code"`
}

// Classify returns the section-prefixed division code for text. topK <= 0
// uses the configured default. Errors are not retried.
func (c *Classifier) Classify(ctx context.Context, text string, topK int) (string, error) {
	if topK <= 0 {
		topK = c.cfg.TopK
	}
	matches, err := c.searcher.Search(ctx, queryInstruction+text, topK)
	if err != nil {
		return "", eris.Wrap(err, "nace: retrieve candidates")
	}
	if len(matches) == 0 {
		return "", ErrNoCandidates
	}

	docs, codes := formatCandidates(matches)
	var out activity
	err = anthropic.Complete(ctx, c.llm, anthropic.CompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      classifierSystemPrompt,
		Prompt:      fmt.Sprintf(classifierUserPrompt, text, docs, quoteCodes(codes)),
		Temperature: 0.1,
		Phase:       "nace_classify",
	}, classifierSchema(codes), &out)
	if err != nil {
		return "", eris.Wrap(err, "nace: classify")
	}

	code := strings.TrimSpace(out.Code)
	if !slices.Contains(codes, code) {
		return "", eris.Wrapf(ErrUnknownCode, "nace: %q not in %v", code, codes)
	}
	section, ok := Section(code)
	if !ok {
		return "", eris.Wrapf(ErrUnknownCode, "nace: no section for %q", code)
	}

	zap.L().Debug("nace: classified", zap.String("code", section+code), zap.Int("candidates", len(codes)))
	return section + code, nil
}

func classifierSchema(codes []string) anthropic.Schema {
	return anthropic.Schema{
		Name:        "activity_classifier",
		Description: "Report the selected NACE division code.",
		Properties: map[string]any{
			"code": map[string]any{
				"type":        "string",
				"enum":        codes,
				"description": "The selected NACE code",
			},
		},
		Required: []string{"code"},
	}
}

// formatCandidates renders the retrieval context and the distinct candidate
// codes in retrieval order.
func formatCandidates(matches []vectorstore.Match) (string, []string) {
	blocks := make([]string, len(matches))
	codes := make([]string, 0, len(matches))
	for i, m := range matches {
		blocks[i] = "========\n" + m.Text
		if !slices.Contains(codes, m.Code) {
			codes = append(codes, m.Code)
		}
	}
	return strings.Join(blocks, "\n\n"), codes
}

func quoteCodes(codes []string) string {
	quoted := make([]string, len(codes))
	for i, c := range codes {
		quoted[i] = "'" + c + "'"
	}
	return strings.Join(quoted, ", ")
}
