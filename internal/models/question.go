package models

// Question is a single AI-generated practice question with its answer.
type Question struct {
	Q string `json:"q"`
	A string `json:"a"`
}

// EssayTheme is an AI-generated essay prompt with its supporting text.
type EssayTheme struct {
	Theme       string `json:"theme"`
	SupportText string `json:"support_text"`
}
