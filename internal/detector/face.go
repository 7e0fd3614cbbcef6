// Package detector provides face landmark types, the landmark source interface
// and per-frame feature extraction for blow detection.
package detector

// Face landmark indices following the MediaPipe FaceMesh convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	TopLip       = 13
	BottomLip    = 14
	LeftCheek    = 234
	RightCheek   = 454
	NumLandmarks = 468
)

// Point3D represents a normalized landmark position. X and Y are in [0, 1]
// relative to the frame, Z is the FaceMesh relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkFrame is one frame's face landmarks together with the frame size
// in pixels.
type LandmarkFrame struct {
	Points [NumLandmarks]Point3D `json:"points"`
	Width  int                   `json:"width"`
	Height int                   `json:"height"`
}

// FeatureSample holds the pixel-space features derived from a single frame.
type FeatureSample struct {
	MouthOpen  int `json:"mouth_open"`
	CheekWidth int `json:"cheek_width"`
}

// px scales a normalized landmark to integer pixel coordinates, truncating
// toward zero.
func (f *LandmarkFrame) px(index int) (int, int) {
	p := f.Points[index]
	return int(p.X * float64(f.Width)), int(p.Y * float64(f.Height))
}

// Extract computes the mouth openness (vertical lip gap) and cheek width
// (horizontal cheek span) of a frame in pixels.
func Extract(frame *LandmarkFrame) FeatureSample {
	_, topY := frame.px(TopLip)
	_, bottomY := frame.px(BottomLip)
	leftX, _ := frame.px(LeftCheek)
	rightX, _ := frame.px(RightCheek)

	return FeatureSample{
		MouthOpen:  abs(topY - bottomY),
		CheekWidth: abs(rightX - leftX),
	}
}

// FaceFromKeyPoints builds a LandmarkFrame where only the four points used
// for blow detection are set. All other landmarks stay at the origin.
func FaceFromKeyPoints(width, height int, top, bottom, left, right Point3D) LandmarkFrame {
	f := LandmarkFrame{Width: width, Height: height}
	f.Points[TopLip] = top
	f.Points[BottomLip] = bottom
	f.Points[LeftCheek] = left
	f.Points[RightCheek] = right
	return f
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
