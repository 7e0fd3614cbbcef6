// Package app wires the camera, face landmarks, blow detector, scene and
// reactions into a running frame loop.
package app

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/magiccandle/internal/blow"
	"github.com/ayusman/magiccandle/internal/capture"
	"github.com/ayusman/magiccandle/internal/detector"
	"github.com/ayusman/magiccandle/internal/logging"
	"github.com/ayusman/magiccandle/internal/plugin"
	"github.com/ayusman/magiccandle/internal/scene"
	"github.com/ayusman/magiccandle/internal/store"
)

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store
	PluginDir string

	// Camera overrides the webcam built from CameraID and Mirror.
	Camera   capture.Camera
	CameraID int
	Mirror   bool
	FPS      int

	// FaceDetector overrides the MediaPipe landmark service.
	FaceDetector detector.FaceDetector
	FaceMesh     detector.Config

	Thresholds blow.Thresholds

	Song          string
	SoundPlugin   string
	Player        string
	PluginTimeout time.Duration

	// Scene overrides the default randomly seeded scene.
	Scene *scene.Scene

	Logger logrus.FieldLogger
}

// EventCallback receives every detector event after its reaction ran.
type EventCallback func(ev blow.Event)

// SceneCallback receives the scene after every frame.
type SceneCallback func(snap scene.Snapshot)

// App is the main application that runs the detection loop and reactions.
type App struct {
	config     Config
	log        logrus.FieldLogger
	camera     capture.Camera
	face       detector.FaceDetector
	blow       *blow.Detector
	scene      *scene.Scene
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	enabled    bool
	mu         sync.RWMutex
	stopCh     chan struct{}
	doneCh     chan struct{}

	// Written by the frame loop, read by HTTP handlers and the tray.
	state      blow.State
	thresholds blow.Thresholds
	pending    *blow.Thresholds
	lastEvent  *blow.Event
	jpeg       []byte
	frames     uint64

	// Owned by the frame loop.
	episodeID string

	playerPID int
	reactions sync.WaitGroup

	eventCallbacks []EventCallback
	sceneCallbacks []SceneCallback
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.Camera == nil {
		config.Camera = capture.NewCamera(config.CameraID, config.Mirror)
	}
	if config.Scene == nil {
		config.Scene = scene.New(nil)
	}

	log := config.Logger.WithField("component", "app")

	// Plugins run inside their own directory.
	if config.Song != "" && !filepath.IsAbs(config.Song) {
		if abs, err := filepath.Abs(config.Song); err == nil {
			config.Song = abs
		} else {
			log.WithError(err).Warn("Failed to resolve song path")
		}
	}
	d := blow.NewDetector(config.Thresholds)

	a := &App{
		config:     config,
		log:        log,
		camera:     config.Camera,
		face:       config.FaceDetector,
		blow:       d,
		scene:      config.Scene,
		pluginMgr:  plugin.NewManager(config.PluginDir, config.Logger),
		pluginExec: plugin.NewExecutor(config.PluginTimeout),
		enabled:    true,
		thresholds: d.Thresholds(),
	}

	// Try MediaPipe first, fall back to a detector that never sees a face
	if a.face == nil {
		if mp, err := detector.NewMediaPipeDetector(config.FaceMesh, config.Logger); err == nil {
			a.face = mp
			log.Info("Using MediaPipe FaceMesh landmarks")
		} else {
			log.WithError(err).Warn("MediaPipe not available, using mock detector")
			a.face = detector.NewMockDetector()
		}
	}

	return a
}

// SetEnabled enables or disables blow detection.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether blow detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the face landmark source to use.
func (a *App) SetDetector(d detector.FaceDetector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.face = d
}

// Detector returns the face landmark source.
func (a *App) Detector() detector.FaceDetector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.face
}

// SetThresholds queues new thresholds; the frame loop applies them before
// its next frame.
func (a *App) SetThresholds(t blow.Thresholds) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = &t
}

// Thresholds returns the thresholds in effect, including queued changes.
func (a *App) Thresholds() blow.Thresholds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.pending != nil {
		return *a.pending
	}
	return a.thresholds
}

// State returns the detector state as of the last processed frame.
func (a *App) State() blow.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// LastEvent returns the most recent detector event, or nil.
func (a *App) LastEvent() *blow.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastEvent == nil {
		return nil
	}
	ev := *a.lastEvent
	return &ev
}

// LatestJPEG returns the most recent preview frame, or nil before the first
// frame was captured.
func (a *App) LatestJPEG() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.jpeg
}

// Frames returns how many frames the loop has processed.
func (a *App) Frames() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frames
}

// Scene returns the presentation state driven by the loop.
func (a *App) Scene() *scene.Scene {
	return a.scene
}

// RegisterEventCallback registers fn to be called for every detector event.
func (a *App) RegisterEventCallback(fn EventCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eventCallbacks = append(a.eventCallbacks, fn)
}

// RegisterSceneCallback registers fn to be called with the scene after every frame.
func (a *App) RegisterSceneCallback(fn SceneCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sceneCallbacks = append(a.sceneCallbacks, fn)
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Start opens the camera and begins the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.log.WithField("fps", a.config.FPS).Info("Detection pipeline started")
	return nil
}

// Stop halts the frame loop, ends any running episode and releases the
// camera and the face detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}

	close(stopCh)
	<-doneCh

	a.interrupt(time.Now())

	if err := a.camera.Close(); err != nil {
		a.log.WithError(err).Error("Error closing camera")
	}

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.log.WithError(err).Error("Error closing face detector")
		}
	}

	a.log.Info("Detection pipeline stopped")
}

// IsRunning reports whether the frame loop is active.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// WaitReactions blocks until in-flight plugin calls have finished.
func (a *App) WaitReactions() {
	a.reactions.Wait()
}
