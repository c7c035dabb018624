package dialogue

import (
	"regexp"
	"strings"
)

// directPatterns matches prompts the primary engine can answer alone:
// greetings, acknowledgments, identity questions, and general
// conversation. Grounded on the original TUI's CodexHead classifier.
var directPatterns = compileAll([]string{
	`^hi$`, `^hello$`, `^hey$`, `^hi!$`, `^hello!$`, `^hey!$`,
	`^good morning`, `^good afternoon`, `^good evening`,
	`^howdy`, `^yo$`, `^sup$`, `^greetings`,
	`^bye$`, `^goodbye$`, `^see you`, `^later$`, `^cya$`, `^goodnight`, `^night$`,
	`^ok$`, `^okay$`, `^sure$`, `^yes$`, `^no$`, `^yep$`, `^nope$`,
	`^thanks`, `^thank you`, `^thx$`, `^ty$`,
	`^got it`, `^understood`, `^i see`, `^makes sense`,
	`^cool$`, `^nice$`, `^great$`, `^awesome$`, `^perfect$`,
	`who are you`, `what are you`, `tell me about yourself`,
	`what is hivemind`, `what's hivemind`, `what can you do`,
	`how do you work`, `introduce yourself`,
	`^help$`, `^help me$`, `what commands`, `how to use`,
	`^status$`, `^version$`,
	`^what time`, `^what date`, `^what day`,
	`^how are you`, `^how's it going`, `how are things`,
	`^really\??$`, `^interesting`, `^i think`, `^i believe`,
	`^that's`, `^what do you think`, `^do you think`,
	`^can you explain`, `^what does .* mean`,
})

// workPatterns matches prompts that require specialized-agent
// consultation: build/code, security, infrastructure, QA, and analysis
// requests.
var workPatterns = compileAll([]string{
	`build`, `create`, `implement`, `develop`, `make me`,
	`write .* code`, `write .* script`, `write .* program`,
	`design`, `architect`, `structure`,
	`fix .* bug`, `debug`, `refactor`, `optimize`,
	`add .* feature`, `update .* code`, `modify .* function`,
	`review .* code`, `code review`,
	`pentest`, `penetration test`, `security audit`,
	`vulnerability`, `exploit`, `security scan`,
	`threat model`, `security review`,
	`deploy`, `configure`, `set up .* server`,
	`kubernetes`, `docker`, `terraform`, `ansible`,
	`ci.?cd`, `pipeline`,
	`test`, `write .* tests`, `test coverage`,
	`performance test`, `load test`, `stress test`,
	`quality assurance`,
	`analyze`, `review`, `assess`, `evaluate`,
	`audit`, `investigate`, `examine`,
})

var simpleQuestionStarters = []string{
	"what is", "what's", "who is", "who's", "when is", "when's",
	"where is", "where's", "why is", "why's", "how is", "how's",
	"can you explain", "could you tell me",
}

// workIndicators override a matched simple-question-starter: "what is a
// bug in general terms" still needs the dialogue loop even though it
// starts with "what is".
var workIndicators = []string{
	"code", "script", "program", "function", "class",
	"bug", "error", "deploy", "server", "database",
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// ShouldEngage reports whether prompt needs the dialogue loop's
// primary/consultant consensus, versus a direct reply from the primary
// engine alone (§4.6's trigger rule).
func ShouldEngage(prompt string) bool {
	lower := strings.ToLower(strings.TrimSpace(prompt))

	if matchesAny(lower, workPatterns) {
		return true
	}
	if matchesAny(lower, directPatterns) {
		return false
	}
	if len(lower) < 20 {
		return false
	}
	for _, starter := range simpleQuestionStarters {
		if strings.HasPrefix(lower, starter) && !containsAny(lower, workIndicators) {
			return false
		}
	}
	return true
}
