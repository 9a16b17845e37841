package models

// Title is an episodic work such as a drama series.
type Title struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Episode is one installment of a title.
type Episode struct {
	ID         string `json:"id" yaml:"id"`
	TitleID    string `json:"title_id" yaml:"title_id"`
	Season     int    `json:"season" yaml:"season"`
	Number     int    `json:"number" yaml:"number"`
	Name       string `json:"name,omitempty" yaml:"name"`
	DurationMs int64  `json:"duration_ms,omitempty" yaml:"duration_ms"`
}
