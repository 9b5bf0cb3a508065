package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, apiURL string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STUDYBUDDY_API_URL", apiURL)
	t.Setenv("STUDYBUDDY_TOKEN", "student-jwt")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func fakeAPI(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer student-jwt", r.Header.Get("Authorization"))
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func respond(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

func TestSubscriptionCommand(t *testing.T) {
	days := 12
	srv := fakeAPI(t, map[string]http.HandlerFunc{
		"GET /v1/subscription": respond(dto.SubscriptionResponseDTO{
			Subscription:    dto.SubscriptionDTO{Plan: model.PlanPro, TTSUsed: 45000, TTSLimit: 90000, TTSRemaining: 45000, IsActive: true},
			StudentType:     model.SchoolStudent,
			DailyUsage:      dto.DailyUsageDTO{ChatsUsed: 3, ImagesUsed: 1},
			PlanLimits:      model.PlanPro.Entitlements(),
			StatusLabel:     "Pro",
			DaysRemaining:   &days,
			TTSUsagePercent: 50,
		}),
	})

	stdout, _, err := executeCLI(t, srv.URL, "subscription")

	require.NoError(t, err)
	assert.Contains(t, stdout, "plan: pro (Pro)")
	assert.Contains(t, stdout, "days remaining: 12")
	assert.Contains(t, stdout, "chats today: 3/70")
	assert.Contains(t, stdout, "premium voice: 45000/90000 chars used (50%), 45000 left")
}

func TestSubscriptionCommandJSON(t *testing.T) {
	srv := fakeAPI(t, map[string]http.HandlerFunc{
		"GET /v1/subscription": respond(dto.SubscriptionResponseDTO{
			Subscription: dto.SubscriptionDTO{Plan: model.PlanBasic, IsActive: true},
		}),
	})

	stdout, _, err := executeCLI(t, srv.URL, "subscription", "--json")

	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, `"plan": "basic"`)
}

func TestUsageCheckDenied(t *testing.T) {
	srv := fakeAPI(t, map[string]http.HandlerFunc{
		"POST /v1/usage/check": respond(map[string]any{
			"allowed": false, "currentCount": 40, "limit": 40, "remaining": 0, "plan": "basic",
			"message": "Daily chat limit reached. Upgrade your plan for more.",
		}),
	})

	stdout, _, err := executeCLI(t, srv.URL, "usage", "check", "chat")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat limit reached (40/40)")
	assert.Contains(t, stdout, "Daily chat limit reached. Upgrade your plan for more.")
}

func TestUsageCheckRejectsUnknownType(t *testing.T) {
	srv := fakeAPI(t, nil)

	_, _, err := executeCLI(t, srv.URL, "usage", "check", "video")

	require.Error(t, err)
}

func TestUpgradeCommand(t *testing.T) {
	var body dto.UpgradeRequestCreateDTO
	srv := fakeAPI(t, map[string]http.HandlerFunc{
		"POST /v1/upgrade-requests": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true}`))
		},
	})

	stdout, _, err := executeCLI(t, srv.URL, "upgrade")

	require.NoError(t, err)
	assert.Empty(t, body.RequestedPlan)
	assert.Contains(t, stdout, "Upgrade request for pro sent")
}

func TestUpgradeCommandShowsServerMessage(t *testing.T) {
	srv := fakeAPI(t, map[string]http.HandlerFunc{
		"POST /v1/upgrade-requests": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"error":"You already have a Basic plan"}`))
		},
	})

	_, _, err := executeCLI(t, srv.URL, "upgrade", "basic")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "You already have a Basic plan")
}

func TestSpeakUsesFallbackOnBasicPlan(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	t.Setenv("STUDYBUDDY_FALLBACK_COMMAND", "true")
	t.Setenv("STUDYBUDDY_TTS_URL", "http://127.0.0.1:1/never-called")
	srv := fakeAPI(t, map[string]http.HandlerFunc{
		"GET /v1/subscription": respond(dto.SubscriptionResponseDTO{
			Subscription: dto.SubscriptionDTO{Plan: model.PlanBasic, IsActive: true},
		}),
	})

	_, stderr, err := executeCLI(t, srv.URL, "speak", "hello", "there")

	require.NoError(t, err)
	assert.Contains(t, stderr, "Using Web Voice (Basic Plan)")
}

func TestSpeakReportsPlaybackFailure(t *testing.T) {
	t.Setenv("STUDYBUDDY_FALLBACK_COMMAND", "definitely-not-a-tts-binary")
	srv := fakeAPI(t, map[string]http.HandlerFunc{
		"GET /v1/subscription": respond(dto.SubscriptionResponseDTO{
			Subscription: dto.SubscriptionDTO{Plan: model.PlanBasic, IsActive: true},
		}),
	})

	_, _, err := executeCLI(t, srv.URL, "speak", "hello")

	assert.ErrorIs(t, err, errPlaybackFailed)
}

func TestMissingTokenFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STUDYBUDDY_TOKEN", "")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"usage"})

	err := root.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token configured")
}

func TestAPIURLFlagOverridesEnv(t *testing.T) {
	srv := fakeAPI(t, map[string]http.HandlerFunc{
		"GET /v1/usage": respond(map[string]any{
			"usageDate": "2025-06-11", "plan": "basic", "chatsUsed": 2, "chatLimit": 40, "imagesUsed": 0, "imageLimit": 6,
		}),
	})
	path := filepath.Join(t.TempDir(), "studybuddy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: "+srv.URL+"\n"), 0o600))

	stdout, _, err := executeCLI(t, "http://127.0.0.1:1", "usage", "--config", path, "--api-url", srv.URL)

	require.NoError(t, err)
	assert.Contains(t, stdout, "2025-06-11 (basic plan)")
	assert.Contains(t, stdout, "chats: 2/40")
}

func TestVoicesNeedsNoToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STUDYBUDDY_TOKEN", "")
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"voices"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "* henry")
}
