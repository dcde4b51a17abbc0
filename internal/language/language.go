// Package language holds the three fixed meeting languages and code normalisation.
package language

import "strings"

type Code string

const (
	Korean  Code = "ko"
	Bengali Code = "bn"
	English Code = "en"

	// Auto means the source language is unknown and foreign to every target.
	Auto Code = "auto"
	// Unknown is reported by speech recognition when nothing could be detected.
	Unknown Code = "unknown"
)

// Targets lists every language an utterance is translated into, in broadcast order.
var Targets = []Code{Korean, Bengali, English}

var aliases = map[string]Code{
	"ko":      Korean,
	"korean":  Korean,
	"bn":      Bengali,
	"bengali": Bengali,
	"bangla":  Bengali,
	"en":      English,
	"english": English,
	"auto":    Auto,
}

// Parse maps a declared or detected language to a Code. Region tags are
// reduced to their base ("ko-KR" -> "ko"). Codes outside the fixed set are
// returned lowercased as-is, and an empty input yields Unknown.
func Parse(raw string) Code {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Unknown
	}
	if c, ok := aliases[s]; ok {
		return c
	}
	if i := strings.IndexAny(s, "-_"); i > 0 {
		if c, ok := aliases[s[:i]]; ok {
			return c
		}
		return Code(s[:i])
	}
	return Code(s)
}

// IsTarget reports whether c is one of the fixed target languages.
func (c Code) IsTarget() bool {
	for _, t := range Targets {
		if c == t {
			return true
		}
	}
	return false
}

// TranslationSource is the source passed to the translator: the code itself
// for one of the fixed languages, Auto for everything else.
func (c Code) TranslationSource() Code {
	if c.IsTarget() {
		return c
	}
	return Auto
}

// Name is the English display name used in translation prompts.
func (c Code) Name() string {
	switch c {
	case Korean:
		return "Korean"
	case Bengali:
		return "Bengali"
	case English:
		return "English"
	default:
		return string(c)
	}
}

// BCP47 returns the regional tag used by speech services.
func (c Code) BCP47() string {
	switch c {
	case Korean:
		return "ko-KR"
	case Bengali:
		return "bn-BD"
	case English:
		return "en-US"
	default:
		return string(c)
	}
}

func (c Code) String() string {
	return string(c)
}
