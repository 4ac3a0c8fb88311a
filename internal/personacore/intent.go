package personacore

import "strings"

// generationVerbs are the tokens that signal an image-generation request,
// matching prompt_enhancement.py's detect_generation_intent keyword list
// narrowed to whole-word verbs.
var generationVerbs = []string{"generate", "draw", "render", "paint", "create"}

// subjectPhrases are common lead-ins stripped from the message before what
// remains is treated as the subject of the image.
var subjectPhrases = []string{
	"an image of", "a picture of", "art of", "image of", "picture of",
	"illustration of", "show me", "can you make", "i want to see", "make me",
}

type imageIntent struct {
	matched bool
	subject string
}

// detectImageIntent applies the tokenized verb-plus-subject heuristic: the
// message must contain one of the generation verbs as a whole word, and
// whatever remains after stripping the verb (only when it starts the
// message) and any lead-in phrase must be non-empty.
func detectImageIntent(message string) imageIntent {
	lower := strings.ToLower(message)
	tokens := strings.Fields(lower)

	verb := ""
	for _, v := range generationVerbs {
		if containsToken(tokens, v) {
			verb = v
			break
		}
	}
	if verb == "" {
		return imageIntent{}
	}

	subject := message
	if idx := strings.Index(lower, verb); idx == 0 {
		subject = strings.TrimSpace(message[len(verb):])
	}
	lowerSubject := strings.ToLower(subject)
	for _, phrase := range subjectPhrases {
		if strings.HasPrefix(lowerSubject, phrase) {
			subject = strings.TrimSpace(subject[len(phrase):])
			lowerSubject = strings.ToLower(subject)
		}
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return imageIntent{}
	}
	return imageIntent{matched: true, subject: subject}
}

func containsToken(tokens []string, word string) bool {
	for _, t := range tokens {
		trimmed := strings.Trim(t, ".,!?:;\"'")
		if trimmed == word {
			return true
		}
	}
	return false
}
