package domain

// Deck is a generated slide presentation.
type Deck struct {
	Title     string  `json:"title"`
	Slides    []Slide `json:"slides"`
	UsedModel string  `json:"used_model,omitempty"`
}

// Slide is one page of a Deck.
type Slide struct {
	Title   string   `json:"title"`
	Content []string `json:"content"`
	Notes   string   `json:"notes,omitempty"`
}

// Summary is a standard document summary.
type Summary struct {
	Mode       string   `json:"mode"`
	Title      string   `json:"title"`
	Overview   string   `json:"overview"`
	KeyPoints  []string `json:"key_points"`
	Conclusion string   `json:"conclusion"`
	UsedModel  string   `json:"used_model,omitempty"`
}

// DeepDive is a "big ideas" book summary.
type DeepDive struct {
	Mode         string           `json:"mode"`
	Metadata     DeepDiveMetadata `json:"metadata"`
	BigIdeas     []string         `json:"big_ideas"`
	Introduction Introduction     `json:"introduction"`
	CoreIdeas    []CoreIdea       `json:"core_ideas"`
	AboutAuthor  string           `json:"about_author"`
	AboutCreator string           `json:"about_creator"`
	UsedModel    string           `json:"used_model,omitempty"`
}

// DeepDiveMetadata identifies the book.
type DeepDiveMetadata struct {
	Title  string `json:"title"`
	Slogan string `json:"slogan"`
	Author string `json:"author"`
}

// Introduction opens a DeepDive.
type Introduction struct {
	Text      string `json:"text"`
	BestQuote string `json:"best_quote"`
}

// CoreIdea is one analysed idea of a DeepDive.
type CoreIdea struct {
	Title      string `json:"title"`
	Quote      string `json:"quote"`
	Commentary string `json:"commentary"`
}

// Review is the markdown output of the three-step review pipeline.
type Review struct {
	Mode           string `json:"mode"`
	Category       string `json:"category"`
	Genre          string `json:"genre"`
	ReviewMarkdown string `json:"review_markdown"`
	UsedModel      string `json:"used_model,omitempty"`
}

// Classification is the librarian step's verdict.
type Classification struct {
	Category        string `json:"category"`
	Genre           string `json:"genre"`
	TargetAudience  string `json:"target_audience,omitempty"`
	CoreTheme       string `json:"core_theme,omitempty"`
	ComplexityLevel string `json:"complexity_level,omitempty"`
}

// DefaultClassification is assumed when the librarian's answer cannot be
// parsed.
func DefaultClassification() Classification {
	return Classification{Category: "Non-Fiction", Genre: "General"}
}

// IsFiction reports whether the analyst should use the fiction template.
func (c Classification) IsFiction() bool {
	return c.Category == "Fiction"
}

// ReviewState checkpoints completed review steps. A step whose output is
// present is skipped on resume.
type ReviewState struct {
	Librarian      *Classification `json:"librarian_data,omitempty"`
	LibrarianModel string          `json:"model1_name,omitempty"`
	AnalystOutput  string          `json:"analyst_output,omitempty"`
	AnalystModel   string          `json:"model2_name,omitempty"`
}

// Clone returns an independent copy, or nil for a nil receiver.
func (s *ReviewState) Clone() *ReviewState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Librarian != nil {
		lib := *s.Librarian
		c.Librarian = &lib
	}
	return &c
}
