package predict

// TopPrediction is one entry of the ranked alternative list returned with
// an image or sound classification.
type TopPrediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Prediction is the service's classification of one image or audio clip.
type Prediction struct {
	Class          string          `json:"class"`
	Confidence     float64         `json:"confidence"`
	TopPredictions []TopPrediction `json:"top_predictions,omitempty"`
}

// Warning is the service's non-fatal low-confidence signal. Its presence
// suppresses collection unlock but is not an error.
type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Result is the full response of an identification submission.
type Result struct {
	Prediction *Prediction    `json:"prediction"`
	Warning    *Warning       `json:"warning,omitempty"`
	Quality    map[string]any `json:"quality_analysis,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Match is one candidate species in a description-identification response.
type Match struct {
	SpeciesID      string  `json:"species_id,omitempty"`
	Key            string  `json:"key,omitempty"`
	CommonName     string  `json:"common_name,omitempty"`
	ScientificName string  `json:"scientific_name,omitempty"`
	ImagePath      string  `json:"image_path,omitempty"`
	Confidence     float64 `json:"confidence"`
	Description    string  `json:"description,omitempty"`
}

// ChatMessage is one prior conversational turn sent back as context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DescribeRequest is the payload of a text-description identification turn.
type DescribeRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
	CurrentMatches      []Match       `json:"current_matches"`
	Category            string        `json:"category,omitempty"`
}

// DescribeResponse is the service's answer to a description turn.
type DescribeResponse struct {
	Success           bool     `json:"success"`
	Response          string   `json:"response"`
	Matches           []Match  `json:"matches"`
	FollowUpQuestions []string `json:"follow_up_questions"`
	Error             string   `json:"error,omitempty"`
}

// Species categories the service serves catalogs for.
const (
	CategoryBirds       = "birds"
	CategoryButterflies = "butterflies"
)
