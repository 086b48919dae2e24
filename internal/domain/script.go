package domain

// Scene is one narrated beat of a generated script with its image prompt.
type Scene struct {
	Text        string `json:"text"`
	ImagePrompt string `json:"imagePrompt"`
}

// Script is the structured output of the LLM script generator.
type Script struct {
	Title    string  `json:"title"`
	Script   string  `json:"script"`
	Scenes   []Scene `json:"scenes"`
	Caption  string  `json:"caption"`
	Hashtags string  `json:"hashtags"`
}
