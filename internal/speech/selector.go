package speech

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"studybuddy/internal/model"

	"github.com/rs/zerolog"
)

// lowQuotaChars is the balance under which StatusMessage warns.
const lowQuotaChars = 10000

var errDebitRefused = errors.New("premium voice debit refused")

// Selector voices one utterance at a time. Each Speak bumps the generation;
// work belonging to an older generation may finish but never plays or
// touches the speaking state.
type Selector struct {
	meter    Meter
	synth    Synthesizer
	player   Player
	fallback FallbackEngine
	cache    *AudioCache
	voiceID  string
	logger   zerolog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	speaking   bool
	engine     Engine
	ent        *Entitlement
}

// Options configures a Selector. Meter, Synthesizer and Player are all
// required for the premium path; without them every utterance goes to
// Fallback.
type Options struct {
	Meter       Meter
	Synthesizer Synthesizer
	Player      Player
	Fallback    FallbackEngine
	Cache       *AudioCache
	VoiceID     string
}

func NewSelector(opts Options, logger zerolog.Logger) *Selector {
	voice := opts.VoiceID
	if voice == "" {
		voice = DefaultVoiceID
	}
	cache := opts.Cache
	if cache == nil {
		cache, _ = NewAudioCache(DefaultCacheSize)
	}
	return &Selector{
		meter:    opts.Meter,
		synth:    opts.Synthesizer,
		player:   opts.Player,
		fallback: opts.Fallback,
		cache:    cache,
		voiceID:  voice,
		engine:   EngineNone,
		logger:   logger.With().Str("component", "SpeechSelector").Logger(),
	}
}

// Speak voices text, preferring the premium engine when the entitlement
// covers it. It blocks until playback ends. A call superseded by a later
// Speak or Stop returns ErrSuperseded. Blank text is a no-op.
func (s *Selector) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	gen, uctx := s.begin(ctx)
	defer s.finish(gen)

	chars := utf8.RuneCountInString(text)
	if s.premiumAllowed(uctx, chars) {
		err := s.speakPremium(uctx, gen, text, chars)
		if err == nil {
			return nil
		}
		if !s.current(gen) {
			return ErrSuperseded
		}
		s.logger.Debug().Err(err).Uint64("generation", gen).Msg("Premium voice abandoned, using fallback")
	}

	if !s.current(gen) {
		return ErrSuperseded
	}
	if s.fallback == nil {
		return ErrPlaybackFailed
	}
	if !s.markSpeaking(gen, EngineWeb) {
		return ErrSuperseded
	}
	err := s.fallback.Speak(uctx, text)
	if !s.current(gen) {
		return ErrSuperseded
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Fallback voice failed")
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}
	return nil
}

// Stop supersedes whatever is playing or in flight.
func (s *Selector) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.release()
}

// IsSpeaking reports whether the current generation is producing sound.
func (s *Selector) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// ActiveEngine is the engine of the current utterance, or EngineNone.
func (s *Selector) ActiveEngine() Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Selector) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// StatusMessage describes the voice the student will hear, based on the
// last entitlement the selector saw. Empty when premium is fine.
func (s *Selector) StatusMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ent == nil {
		return ""
	}
	return statusMessage(*s.ent)
}

func statusMessage(e Entitlement) string {
	switch {
	case e.Plan != model.PlanPro:
		name := string(e.Plan)
		if name != "" {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		return fmt.Sprintf("Using Web Voice (%s Plan)", name)
	case !e.Eligible || e.Remaining <= 0:
		return "Voice limit reached - Using Web Voice"
	case e.Remaining < lowQuotaChars:
		return fmt.Sprintf("Low voice quota: %dK chars left", int(math.Round(float64(e.Remaining)/1000)))
	default:
		return ""
	}
}

// RefreshEntitlement reloads the entitlement snapshot from the meter.
func (s *Selector) RefreshEntitlement(ctx context.Context) (Entitlement, error) {
	if s.meter == nil {
		return Entitlement{}, errors.New("no meter configured")
	}
	ent, err := s.meter.Entitlement(ctx)
	if err != nil {
		return Entitlement{}, err
	}
	s.mu.Lock()
	s.ent = &ent
	s.mu.Unlock()
	return ent, nil
}

func (s *Selector) begin(ctx context.Context) (uint64, context.Context) {
	uctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.release()
	s.cancel = cancel
	return s.generation, uctx
}

func (s *Selector) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.release()
	}
}

// release cancels in-flight work and clears playback state. Callers hold mu.
func (s *Selector) release() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.speaking = false
	s.engine = EngineNone
}

func (s *Selector) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

func (s *Selector) markSpeaking(gen uint64, engine Engine) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.speaking = true
	s.engine = engine
	return true
}

func (s *Selector) premiumAllowed(ctx context.Context, chars int) bool {
	if s.meter == nil || s.synth == nil || s.player == nil {
		return false
	}
	ent, err := s.RefreshEntitlement(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Could not load voice entitlement")
		return false
	}
	return ent.Premium(chars)
}

func (s *Selector) speakPremium(ctx context.Context, gen uint64, text string, chars int) error {
	key := CacheKey(s.voiceID, text)
	audio, hit := s.cache.Get(key)
	if !hit {
		var err error
		audio, err = s.synth.Synthesize(ctx, text, s.voiceID)
		if err != nil {
			return err
		}
		if !s.current(gen) {
			return ErrSuperseded
		}
		allowed, remaining, err := s.meter.Debit(ctx, chars)
		if err != nil {
			return err
		}
		s.recordRemaining(remaining, allowed)
		if !allowed {
			return errDebitRefused
		}
		s.cache.Add(key, audio)
	}

	if !s.markSpeaking(gen, EnginePremium) {
		return ErrSuperseded
	}
	return s.player.Play(ctx, audio)
}

func (s *Selector) recordRemaining(remaining int, allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ent == nil {
		return
	}
	s.ent.Remaining = remaining
	if !allowed || remaining <= 0 {
		s.ent.Eligible = false
	}
}
