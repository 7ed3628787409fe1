package parser

// Turn is one recovered question/answer exchange.
type Turn struct {
	Order    int    `json:"order"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Outcome is the result of running the cascade over one raw transcript.
type Outcome struct {
	Turns    []Turn `json:"turns"`
	Title    string `json:"title"`
	Platform string `json:"platform"`
	Stage    string `json:"stage"` // which cascade stage produced the turns
}

// Stage names, in cascade order.
const (
	StageStructured = "structured"
	StageMarkers    = "markers"
	StageHeuristic  = "heuristic"
	StagePairing    = "pairing"
)

// PlatformUnknown is reported whenever the input carried no platform metadata.
const PlatformUnknown = "unknown"

// Markers holds the role aliases recognised by the marker stage.
// Matching is case-insensitive and each alias must be followed by a colon.
type Markers struct {
	Asker     []string `yaml:"asker"`
	Responder []string `yaml:"responder"`
}

// DefaultMarkers returns the built-in alias set.
func DefaultMarkers() Markers {
	return Markers{
		Asker:     []string{"Human", "User", "You", "Me", "H"},
		Responder: []string{"Assistant", "Claude", "ChatGPT", "Gemini", "AI", "Bot", "A"},
	}
}

func numberTurns(pairs [][2]string) []Turn {
	if len(pairs) == 0 {
		return nil
	}
	turns := make([]Turn, len(pairs))
	for i, p := range pairs {
		turns[i] = Turn{Order: i + 1, Question: p[0], Answer: p[1]}
	}
	return turns
}
