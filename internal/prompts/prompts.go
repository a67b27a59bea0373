// Package prompts renders the instruction and prompt text sent to models.
// The templates are embedded so that the binary carries its own prompts.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var files embed.FS

// DefaultLanguage is used when a caller does not choose an output language.
const DefaultLanguage = "Vietnamese"

// minInstructionLen is the trimmed length custom instructions must exceed
// before they are included.
const minInstructionLen = 2

var tmpl = template.Must(template.ParseFS(files, "templates/*.tmpl"))

// SlideParams drives the slide deck prompts.
type SlideParams struct {
	// Mode is "detail" or "overview".
	Mode         string
	Instructions string
	Language     string
}

// SlideSystem returns the system instruction for deck generation, including
// the mode addendum and any custom instructions.
func SlideSystem(p SlideParams) (string, error) {
	p.Language = language(p.Language)
	p.Instructions = CustomInstructions(p.Instructions)
	return render("slides_system.tmpl", p)
}

// SlidePrompt returns the user prompt for deck generation.
func SlidePrompt(p SlideParams) (string, error) {
	return render("slides_user.tmpl", p)
}

// SummarySystem returns the system instruction for a standard summary.
func SummarySystem(lang string) (string, error) {
	return render("summary_system.tmpl", struct{ Language string }{language(lang)})
}

// SummaryPrompt returns the user prompt for a standard summary. Free-form
// instructions are appended as given.
func SummaryPrompt(instructions string) (string, error) {
	return render("summary_user.tmpl", struct{ Instructions string }{strings.TrimSpace(instructions)})
}

// DeepDive returns the single prompt for a "Big Ideas" book summary.
func DeepDive(lang string) (string, error) {
	return render("deep_dive.tmpl", struct{ Language string }{language(lang)})
}

// ReviewLibrarian returns the classification prompt of the review pipeline.
func ReviewLibrarian() (string, error) {
	return render("review_librarian.tmpl", nil)
}

// ReviewAnalyst returns the analysis prompt matching the book's category.
func ReviewAnalyst(fiction bool, genre string) (string, error) {
	name := "review_analyst_nonfiction.tmpl"
	if fiction {
		name = "review_analyst_fiction.tmpl"
	}
	return render(name, struct{ Genre string }{strings.TrimSpace(genre)})
}

// EditorParams carries the outputs of the earlier review steps.
type EditorParams struct {
	Language string
	// Librarian is the JSON encoding of the classification.
	Librarian string
	Analyst   string
}

// ReviewEditor returns the prompt that turns the analysis into markdown.
func ReviewEditor(p EditorParams) (string, error) {
	p.Language = language(p.Language)
	return render("review_editor.tmpl", p)
}

// CustomInstructions returns the trimmed instructions, or "" when they are
// too short to carry meaning.
func CustomInstructions(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= minInstructionLen {
		return ""
	}
	return s
}

func language(lang string) string {
	if lang = strings.TrimSpace(lang); lang != "" {
		return lang
	}
	return DefaultLanguage
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
