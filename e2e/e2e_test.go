package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/magiccandle/internal/app"
	"github.com/ayusman/magiccandle/internal/blow"
	"github.com/ayusman/magiccandle/internal/capture"
	"github.com/ayusman/magiccandle/internal/detector"
	"github.com/ayusman/magiccandle/internal/fixtures"
	"github.com/ayusman/magiccandle/internal/scene"
	"github.com/ayusman/magiccandle/internal/server"
	"github.com/ayusman/magiccandle/internal/store"
)

type episodeList struct {
	Episodes []struct {
		ID        string  `json:"id"`
		ResetAt   *string `json:"reset_at"`
		BlowCount int     `json:"blow_count"`
		MaxCheek  int     `json:"max_cheek"`
	} `json:"episodes"`
	Total int `json:"total"`
}

func getJSON(t *testing.T, client *http.Client, url string, v any) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, http.StatusOK)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("GET %s decode error = %v", url, err)
	}
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	face := detector.NewMockDetector()
	resting := detector.RestingFace()
	blowing := detector.BlowingFace()
	face.SetFace(&resting)

	thresholds := blow.DefaultThresholds()
	thresholds.ResetAfter = 300 * time.Millisecond

	application := app.New(app.Config{
		Store:        s,
		PluginDir:    filepath.Join(tmpDir, "plugins"),
		Camera:       capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		FaceDetector: face,
		FPS:          50,
		Thresholds:   thresholds,
		Scene:        scene.New(nil),
	})

	hub := server.NewEventsHub(nil)
	application.RegisterEventCallback(hub.BroadcastEvent)
	application.RegisterSceneCallback(hub.BroadcastScene)

	srv := server.New(server.Config{Store: s, App: application, Hub: hub})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	t.Run("Calibrate", func(t *testing.T) {
		waitFor(t, 2*time.Second, "resting frames", func() bool {
			return application.State().MaxCheek == 256
		})
	})

	t.Run("BlowOpensEpisode", func(t *testing.T) {
		face.SetFace(&blowing)

		waitFor(t, 2*time.Second, "episode", func() bool {
			var list episodeList
			getJSON(t, client, ts.URL+"/api/episodes", &list)
			return list.Total == 1
		})

		var health map[string]any
		getJSON(t, client, ts.URL+"/api/health", &health)
		if health["phase"] != string(blow.PhaseBlown) {
			t.Errorf("phase = %v, want %q", health["phase"], blow.PhaseBlown)
		}
		if health["blow_count"] != float64(1) {
			t.Errorf("blow_count = %v, want 1", health["blow_count"])
		}
	})

	t.Run("LockoutHoldsWhileBlowing", func(t *testing.T) {
		time.Sleep(100 * time.Millisecond)

		var list episodeList
		getJSON(t, client, ts.URL+"/api/episodes", &list)
		if list.Total != 1 {
			t.Fatalf("total = %d, want 1", list.Total)
		}
		if list.Episodes[0].BlowCount != 1 {
			t.Errorf("blow_count = %d, want 1", list.Episodes[0].BlowCount)
		}
		if list.Episodes[0].MaxCheek != 256 {
			t.Errorf("max_cheek = %d, want 256", list.Episodes[0].MaxCheek)
		}
	})

	t.Run("AutoResetClosesEpisode", func(t *testing.T) {
		face.SetFace(&resting)

		waitFor(t, 3*time.Second, "reset", func() bool {
			var list episodeList
			getJSON(t, client, ts.URL+"/api/episodes", &list)
			return list.Total == 1 && list.Episodes[0].ResetAt != nil
		})

		waitFor(t, time.Second, "idle phase", func() bool {
			return application.State().Phase() == blow.PhaseIdle
		})
	})

	t.Run("UpdateSettings", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings",
			strings.NewReader(`{"mouth_open": 30, "enabled": true}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("PUT /api/settings error = %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		stored, err := s.Settings().LoadThresholds(blow.DefaultThresholds())
		if err != nil {
			t.Fatalf("LoadThresholds() error = %v", err)
		}
		if stored.MouthOpen != 30 {
			t.Errorf("stored mouth_open = %d, want 30", stored.MouthOpen)
		}

		waitFor(t, time.Second, "thresholds applied", func() bool {
			return application.Thresholds().MouthOpen == 30
		})
	})

	t.Run("RaisedThresholdIgnoresBlow", func(t *testing.T) {
		face.SetFace(&blowing)
		time.Sleep(150 * time.Millisecond)
		face.SetFace(&resting)

		var list episodeList
		getJSON(t, client, ts.URL+"/api/episodes", &list)
		if list.Total != 1 {
			t.Errorf("total = %d, want 1", list.Total)
		}
	})
}

func TestE2E_FixtureSequences(t *testing.T) {
	for _, name := range fixtures.Names() {
		t.Run(name, func(t *testing.T) {
			seq := fixtures.MustLoad(name)

			d := blow.NewDetector(blow.DefaultThresholds())
			events := seq.Replay(d, time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))

			if len(events) != len(seq.Expect) {
				t.Fatalf("got %d events, want %d (%v)", len(events), len(seq.Expect), events)
			}
			for i, ev := range events {
				if ev.Kind != seq.Expect[i] {
					t.Errorf("event %d = %s, want %s", i, ev.Kind, seq.Expect[i])
				}
			}
		})
	}
}
