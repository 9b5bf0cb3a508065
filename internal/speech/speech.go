// Package speech picks between metered premium voice synthesis and an
// unmetered local fallback for each utterance.
package speech

import (
	"context"
	"errors"

	"studybuddy/internal/model"
)

var (
	// ErrFallbackRequested is returned by a Synthesizer when the premium
	// backend asks the client to use the fallback engine instead.
	ErrFallbackRequested = errors.New("premium backend requested fallback")
	// ErrPlaybackFailed is returned when neither engine could voice the text.
	ErrPlaybackFailed = errors.New("voice playback failed")
	// ErrSuperseded is returned by Speak when a newer Speak or Stop replaced it.
	ErrSuperseded = errors.New("speech superseded")
)

// Entitlement is the caller's premium voice standing.
type Entitlement struct {
	Plan      model.PlanTier
	Eligible  bool
	Remaining int
}

// Premium reports whether chars characters may go through the premium path.
func (e Entitlement) Premium(chars int) bool {
	return e.Plan == model.PlanPro && e.Eligible && e.Remaining >= chars
}

// Meter reads and debits the premium voice allowance.
type Meter interface {
	Entitlement(ctx context.Context) (Entitlement, error)
	// Debit charges chars characters, all or nothing. allowed=false means
	// nothing was charged.
	Debit(ctx context.Context, chars int) (allowed bool, remaining int, err error)
}

// Synthesizer renders text with a premium voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Player plays rendered audio, returning when playback ends.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// FallbackEngine voices text locally without metering.
type FallbackEngine interface {
	Speak(ctx context.Context, text string) error
}

// Engine is the engine currently producing sound.
type Engine string

const (
	EngineNone    Engine = "none"
	EnginePremium Engine = "premium"
	EngineWeb     Engine = "web"
)

// Voice is a premium voice offered to students.
type Voice struct {
	ID           string
	Name         string
	LanguageCode string
}

// DefaultVoiceID is used when no voice is configured.
const DefaultVoiceID = "henry"

// Voices lists the premium voices.
var Voices = []Voice{
	{ID: "henry", Name: "Henry", LanguageCode: "hi-IN"},
	{ID: "natasha", Name: "Natasha", LanguageCode: "hi-IN"},
	{ID: "george", Name: "George", LanguageCode: "en-GB"},
	{ID: "cliff", Name: "Cliff", LanguageCode: "en-US"},
	{ID: "gwyneth", Name: "Gwyneth", LanguageCode: "en-US"},
	{ID: "oliver", Name: "Oliver", LanguageCode: "en-GB"},
}

// LookupVoice reports whether id names a premium voice.
func LookupVoice(id string) (Voice, bool) {
	for _, v := range Voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}
