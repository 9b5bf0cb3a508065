package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"studybuddy/internal/speech"

	"github.com/spf13/cobra"
)

var errPlaybackFailed = errors.New("voice playback failed, try again")

func newSpeakCmd(a *app) *cobra.Command {
	var speed float64

	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Read text aloud with the premium voice when your plan allows it",
		Long:  "Reads the arguments, or stdin when none are given. Pro students with voice balance hear the premium voice; everyone else gets the local fallback engine.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(raw)
			}

			sel, err := a.newSelector(speed)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = sel.Speak(ctx, text)
			if msg := sel.StatusMessage(); msg != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
			if ctx.Err() != nil {
				// Interrupted.
				sel.Stop()
				return nil
			}
			if errors.Is(err, speech.ErrPlaybackFailed) {
				return errPlaybackFailed
			}
			return err
		},
	}
	cmd.Flags().String("voice", "", "Premium voice id (see voices)")
	cmd.Flags().Float64Var(&speed, "speed", 1.0, "Premium voice speed, 0.5 to 2")
	return cmd
}

func (a *app) newSelector(speed float64) (*speech.Selector, error) {
	opts := speech.Options{Meter: a.client, VoiceID: a.cfg.Voice}

	if a.cfg.TTSURL != "" && a.cfg.PlayerCommand != "" {
		player, err := speech.NewCommandPlayer(a.cfg.PlayerCommand)
		if err != nil {
			return nil, fmt.Errorf("player_command: %w", err)
		}
		opts.Player = player
		opts.Synthesizer = speech.NewHTTPSynthesizer(a.cfg.TTSURL, a.cfg.Token, a.cfg.Timeout).WithSpeed(speed)
	}
	if a.cfg.FallbackCommand != "" {
		engine, err := speech.NewCommandEngine(a.cfg.FallbackCommand)
		if err != nil {
			return nil, fmt.Errorf("fallback_command: %w", err)
		}
		opts.Fallback = engine
	}
	return speech.NewSelector(opts, a.logger), nil
}

func newVoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List premium voices",
		Args:  cobra.NoArgs,
		// Listing voices needs no token.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, v := range speech.Voices {
				marker := " "
				if v.ID == speech.DefaultVoiceID {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %-8s %s\n", marker, v.ID, v.Name, v.LanguageCode)
			}
			return nil
		},
	}
}
