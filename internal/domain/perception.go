package domain

// Gesture is the coarse hand state derived from the finger count.
type Gesture string

const (
	GestureClosed  Gesture = "closed"
	GestureOpen    Gesture = "open"
	GestureUnknown Gesture = "unknown"
)

// Point is a normalized image coordinate in [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type HandInfo struct {
	Fingers int     `json:"fingers"`
	Gesture Gesture `json:"gesture"`
	Wrist   Point   `json:"wrist"`
}

// Hands holds at most one hand per side. A nil side was not detected and
// serializes as null.
type Hands struct {
	Left  *HandInfo `json:"left"`
	Right *HandInfo `json:"right"`
}

type BodyKeypoints struct {
	Head          Point `json:"head"`
	LeftShoulder  Point `json:"left_shoulder"`
	RightShoulder Point `json:"right_shoulder"`
	LeftElbow     Point `json:"left_elbow"`
	RightElbow    Point `json:"right_elbow"`
}

// PerceptionResult is produced once per inbound frame and never stored.
// The zero value means nothing was detected.
type PerceptionResult struct {
	Hands Hands          `json:"hands"`
	Body  *BodyKeypoints `json:"body"`
}

func (r PerceptionResult) Empty() bool {
	return r.Hands.Left == nil && r.Hands.Right == nil && r.Body == nil
}
