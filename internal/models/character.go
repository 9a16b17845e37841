package models

// Alias is an alternative name a character is referred to by.
type Alias struct {
	Text       string  `json:"text" yaml:"text"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Character is a named person of a title.
type Character struct {
	ID            string  `json:"id" yaml:"id"`
	TitleID       string  `json:"title_id" yaml:"title_id"`
	CanonicalName string  `json:"canonical_name" yaml:"name"`
	Description   string  `json:"description,omitempty" yaml:"description"`
	Aliases       []Alias `json:"aliases,omitempty" yaml:"aliases"`
}

// AliasTexts returns the plain alias strings.
func (c Character) AliasTexts() []string {
	out := make([]string, 0, len(c.Aliases))
	for _, a := range c.Aliases {
		out = append(out, a.Text)
	}
	return out
}
