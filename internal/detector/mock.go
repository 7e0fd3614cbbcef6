package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// Preset frame size used by the mock faces.
const (
	mockWidth  = 640
	mockHeight = 480
)

// MockDetector is a test implementation of the FaceDetector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	face  *LandmarkFrame
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance that reports no face.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFace sets the face that will be returned by Detect. Passing nil
// simulates a frame without a face.
func (m *MockDetector) SetFace(face *LandmarkFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.face = face
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured face or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*LandmarkFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.face == nil {
		return nil, nil
	}
	face := *m.face
	return &face, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// RestingFace returns a preset face with a closed mouth and relaxed cheeks.
// On a 640x480 frame the mouth gap is 2px and the cheek width is 256px.
func RestingFace() LandmarkFrame {
	return FaceFromKeyPoints(mockWidth, mockHeight,
		Point3D{X: 0.5, Y: 0.600},
		Point3D{X: 0.5, Y: 0.605},
		Point3D{X: 0.3, Y: 0.5},
		Point3D{X: 0.7, Y: 0.5},
	)
}

// BlowingFace returns a preset face with pursed, open lips and the cheeks
// drawn in. On a 640x480 frame the mouth gap is 24px and the cheek width is
// 243px, 13px narrower than RestingFace.
func BlowingFace() LandmarkFrame {
	return FaceFromKeyPoints(mockWidth, mockHeight,
		Point3D{X: 0.5, Y: 0.60},
		Point3D{X: 0.5, Y: 0.65},
		Point3D{X: 0.31, Y: 0.5},
		Point3D{X: 0.69, Y: 0.5},
	)
}
