package lifecycle

import (
	"regexp"
	"strings"

	"krl-safety-backend/internal/model"
)

// Command is a spoken lifecycle instruction.
type Command int

const (
	CommandNone Command = iota
	CommandAcknowledge
	CommandResolve
)

// Indonesian stems match anywhere so affixed forms ("diselesaikan",
// "ditangani") count. English words must start a word: "done" would
// otherwise match inside "Indonesia".
var (
	resolveStems     = []string{"selesai"}
	acknowledgeStems = []string{"tangani", "proses", "ambil"}

	resolveEnglish     = regexp.MustCompile(`\b(?:resolved|done|finish)`)
	acknowledgeEnglish = regexp.MustCompile(`\b(?:handle|take)`)
)

// ParseCommand classifies a phrase case-insensitively.
// Resolution vocabulary wins when both appear.
func ParseCommand(phrase string) Command {
	lower := strings.ToLower(phrase)
	if containsAny(lower, resolveStems) || resolveEnglish.MatchString(lower) {
		return CommandResolve
	}
	if containsAny(lower, acknowledgeStems) || acknowledgeEnglish.MatchString(lower) {
		return CommandAcknowledge
	}
	return CommandNone
}

// Status is the case status a command moves to, empty for CommandNone.
func (c Command) Status() model.CaseStatus {
	switch c {
	case CommandAcknowledge:
		return model.StatusInProgress
	case CommandResolve:
		return model.StatusResolved
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
