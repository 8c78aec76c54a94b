package tour

// Localize looks up lang in a multilingual field, falling back to the
// fallback language and then to the empty string.
func Localize(field map[string]string, lang, fallback string) string {
	if v, ok := field[lang]; ok {
		return v
	}
	if v, ok := field[fallback]; ok {
		return v
	}
	return ""
}

// Content is what a session should currently present to the user.
type Content struct {
	// Completed is the completion signal; Waypoint is nil when set.
	Completed bool

	Waypoint  *Waypoint
	Narration string
	Audio     string
	Language  string

	Progress Progress
}

// ResolveContent returns the content for position index of seq in the
// requested language.
func ResolveContent(seq []Waypoint, index int, lang, fallback string) Content {
	total := len(seq)
	if index >= total {
		return Content{
			Completed: true,
			Language:  lang,
			Progress:  Progress{Current: total, Total: total},
		}
	}
	if index < 0 {
		index = 0
	}

	wp := seq[index]
	return Content{
		Waypoint:  &wp,
		Narration: Localize(wp.Narration, lang, fallback),
		Audio:     Localize(wp.Audio, lang, fallback),
		Language:  lang,
		Progress:  Progress{Current: index + 1, Total: total},
	}
}
