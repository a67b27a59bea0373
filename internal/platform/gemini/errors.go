package gemini

import "errors"

// ErrBlocked is returned when Gemini withheld the output, either because the
// prompt was blocked or because generation stopped on a safety filter.
var ErrBlocked = errors.New("gemini response blocked")
