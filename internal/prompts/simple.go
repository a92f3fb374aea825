package prompts

import "strings"

// simpleQueries are greetings and identity questions the assistant answers
// instantly. The streaming endpoint skips its "start-processing" event for
// these so the widget does not flash a progress state on "hi".
var simpleQueries = []string{
	// English
	"hi", "hello", "hey", "yo", "greetings", "good morning", "good afternoon", "good evening",
	"how are you", "how r u", "how are u", "how you doing", "hows it going",
	"what is your name", "whats your name", "what is ur name",
	"who are you",
	"thanks", "thank you", "thx", "ty",

	// Arabic
	"السلام عليكم", "سلام عليكم", "السلام عليكم ورحمة الله وبركاته",
	"مرحبا", "مرحبا بك", "مراحب",
	"أهلا", "أهلا بك", "أهلا وسهلا", "يا أهلا",
	"هاي",
	"هلا",
	"كيف حالك", "كيف الحال", "كيفك", "شلونك", "شخبارك", "ايش اخبارك", "عامل ايه", "ازيك",
	"ما اسمك", "ايش اسمك", "شو اسمك", "اسمك ايه",
	"من أنت", "مين انت", "مين حضرتك",
	"شكرا", "شكرا لك", "شكرا جزيلا", "مشكور", "تسلم",

	// Transliterated
	"salam", "salam alaykom", "salam alaikom",
	"marhaba", "mar7aba",
	"ahlan", "ahlan wa sahlan",
	"kifak", "kefak", "kif halak", "shlonak", "shlonek",
	"shu ismak", "sho ismak", "esmak eh",
	"shokran", "shukran",

	// Common typos
	"اسلام عليكم",
	"اهلًا",
}

// IsSimpleQuery reports whether message is a plain greeting or identity
// question rather than a real support question.
func IsSimpleQuery(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	if m == "" {
		return false
	}
	for _, q := range simpleQueries {
		if strings.Contains(m, q) {
			return true
		}
	}
	return false
}
