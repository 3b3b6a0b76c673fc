package domain

// CoverParams are the structured inputs of a cover prompt.
type CoverParams struct {
	Title       string   `yaml:"title" json:"title,omitempty"`
	Artist      string   `yaml:"artist" json:"artist,omitempty"`
	Genre       string   `yaml:"genre" json:"genre,omitempty"`
	Style       string   `yaml:"style" json:"style,omitempty"`
	Regional    string   `yaml:"regional" json:"regional,omitempty"`
	Colors      []string `yaml:"colors" json:"colors,omitempty"`
	Subject     string   `yaml:"subject" json:"subject,omitempty"`
	Custom      string   `yaml:"custom" json:"custom,omitempty"`
	Avoid       string   `yaml:"avoid" json:"avoid,omitempty"`
	ReleaseType string   `yaml:"release_type" json:"release_type,omitempty"`
}

// CoverIntent is a parsed natural-language cover request.
type CoverIntent struct {
	Params        CoverParams
	Resolution    Resolution
	NumVariations int
}
