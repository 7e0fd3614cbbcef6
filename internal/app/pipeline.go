package app

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/magiccandle/internal/blow"
	"github.com/ayusman/magiccandle/internal/detector"
)

var overlayColor = color.RGBA{G: 255, A: 255}

// runPipeline is the frame loop. It ticks at the configured FPS until stopCh
// is closed.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			a.processFrame(now)
		}
	}
}

// processFrame runs one iteration of the loop.
//
// Pipeline logic:
// 1. Apply queued threshold changes
// 2. Read a mirrored frame and look for a face, unless disabled
// 3. Feed the features to the detector, or just advance its clock
// 4. Publish the annotated frame for the preview
// 5. Dispatch detector events to their reactions
// 6. Advance the scene and hand it to subscribers
func (a *App) processFrame(now time.Time) {
	a.applyPendingThresholds()

	var (
		face  *detector.LandmarkFrame
		frame *gocv.Mat
	)

	// While disabled the camera stays idle but the reset clock keeps running.
	if a.IsEnabled() {
		var err error
		frame, err = a.camera.ReadFrame()
		if err != nil {
			a.log.WithError(err).Debug("Error reading frame")
			frame = nil
		} else {
			face, err = a.Detector().Detect(frame)
			if err != nil {
				a.log.WithError(err).Warn("Error detecting face")
				face = nil
			}
		}
	}

	events := a.step(face, now)

	if frame != nil {
		if face != nil {
			annotate(frame, detector.Extract(face))
		}
		a.publishFrame(frame)
		frame.Close()
	}

	a.mu.Lock()
	a.state = a.blow.State()
	a.frames++
	a.mu.Unlock()

	a.dispatch(events)

	a.scene.Tick()
	a.notifyScene()
}

// step feeds one frame to the detector. Frames without a face only advance
// the reset clock.
func (a *App) step(face *detector.LandmarkFrame, now time.Time) []blow.Event {
	if face == nil {
		return a.blow.Tick(now)
	}
	return a.blow.Update(detector.Extract(face), now)
}

func (a *App) applyPendingThresholds() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending == nil {
		return
	}
	a.blow.SetThresholds(*a.pending)
	a.thresholds = a.blow.Thresholds()
	a.pending = nil

	a.log.WithField("thresholds", fmt.Sprintf("%+v", a.thresholds)).Info("Detector thresholds updated")
}

// annotate draws the measured features on the preview frame.
func annotate(frame *gocv.Mat, s detector.FeatureSample) {
	gocv.PutText(frame, fmt.Sprintf("Mouth Open: %d", s.MouthOpen), image.Pt(10, 30),
		gocv.FontHersheySimplex, 0.7, overlayColor, 2)
	gocv.PutText(frame, fmt.Sprintf("Cheek Width: %d", s.CheekWidth), image.Pt(10, 60),
		gocv.FontHersheySimplex, 0.7, overlayColor, 2)
}

// publishFrame stores the frame as JPEG for the preview stream.
func (a *App) publishFrame(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		a.log.WithError(err).Debug("Error encoding preview frame")
		return
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())

	a.mu.Lock()
	a.jpeg = jpeg
	a.mu.Unlock()
}

func (a *App) notifyScene() {
	a.mu.RLock()
	callbacks := a.sceneCallbacks
	a.mu.RUnlock()

	if len(callbacks) == 0 {
		return
	}

	snap := a.scene.Snapshot()
	for _, fn := range callbacks {
		fn(snap)
	}
}
