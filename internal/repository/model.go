package repository

import (
	"time"

	"github.com/foxseedlab/ko2bn/internal/language"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

type ModuleType string

const (
	ModuleTypePhysicalMeeting ModuleType = "physical_meeting"
	ModuleTypeVirtualMeeting  ModuleType = "virtual_meeting"
)

func (m ModuleType) Valid() bool {
	return m == ModuleTypePhysicalMeeting || m == ModuleTypeVirtualMeeting
}

type Session struct {
	ID         int64
	Code       string
	ProjectID  *int64
	CreatedBy  int64
	ModuleType ModuleType
	Status     SessionStatus
	CreatedAt  time.Time
	EndedAt    *time.Time
}

type TranscriptEntry struct {
	ID               int64
	SessionID        int64
	UserID           *int64
	SpeakerName      string
	OriginalText     string
	OriginalLanguage language.Code
	Translations     Translations
	Timestamp        time.Time
}

// Translations holds one field per fixed target language. A nil field means
// the translation into that language failed.
type Translations struct {
	Ko *string
	Bn *string
	En *string
}

func (t *Translations) Set(lang language.Code, text string) {
	v := text
	switch lang {
	case language.Korean:
		t.Ko = &v
	case language.Bengali:
		t.Bn = &v
	case language.English:
		t.En = &v
	}
}

func (t Translations) Get(lang language.Code) (string, bool) {
	var p *string
	switch lang {
	case language.Korean:
		p = t.Ko
	case language.Bengali:
		p = t.Bn
	case language.English:
		p = t.En
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

type GlossaryTerm struct {
	ID         int64
	ProjectID  int64
	SourceTerm string
	TargetTerm string
	SourceLang language.Code
	TargetLang language.Code
}

// ByLanguage keys every target field by its language code. Failed
// translations are present with a nil value.
func (t Translations) ByLanguage() map[string]*string {
	return map[string]*string{
		string(language.Korean):  t.Ko,
		string(language.Bengali): t.Bn,
		string(language.English): t.En,
	}
}
