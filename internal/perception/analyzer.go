package perception

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/dkeye/Camlink/internal/domain"
)

// Hand landmark indices.
const (
	wrist    = 0
	thumbIP  = 3
	thumbTip = 4
	handSize = 21
)

var fingerTips = [...]int{8, 12, 16, 20}

// Pose landmark indices.
const (
	poseNose          = 0
	poseLeftShoulder  = 11
	poseRightShoulder = 12
	poseLeftElbow     = 13
	poseRightElbow    = 14
)

// Analyzer implements Adapter on top of a Detector.
type Analyzer struct {
	Detector Detector
}

func NewAnalyzer(d Detector) *Analyzer {
	if d == nil {
		d = NopDetector{}
	}
	return &Analyzer{Detector: d}
}

func (a *Analyzer) Analyze(ctx context.Context, img image.Image) (domain.PerceptionResult, error) {
	if img == nil {
		return domain.PerceptionResult{}, ErrNoImage
	}
	det, err := a.Detector.Detect(ctx, img)
	if err != nil {
		return domain.PerceptionResult{}, fmt.Errorf("detect: %w", err)
	}
	return Grade(det), nil
}

// Grade maps raw landmarks to the result structure. Hands with an
// unrecognized label or an incomplete landmark set are skipped; if the
// detector reports two hands with the same label the later one wins.
func Grade(det Detection) domain.PerceptionResult {
	var res domain.PerceptionResult
	for _, h := range det.Hands {
		info, ok := gradeHand(h)
		if !ok {
			continue
		}
		switch strings.ToLower(h.Handedness) {
		case "left":
			res.Hands.Left = info
		case "right":
			res.Hands.Right = info
		}
	}
	res.Body = bodyKeypoints(det.Pose)
	return res
}

func gradeHand(h Hand) (*domain.HandInfo, bool) {
	fingers, ok := CountFingers(h)
	if !ok {
		return nil, false
	}
	w := h.Landmarks[wrist]
	return &domain.HandInfo{
		Fingers: fingers,
		Gesture: GestureFor(fingers),
		Wrist:   domain.Point{X: w.X, Y: w.Y},
	}, true
}

// CountFingers counts raised fingers. The thumb is raised when its tip is
// further out than its IP joint along x, which direction that is depends on
// handedness. Other fingers are raised when the tip is above the PIP joint.
func CountFingers(h Hand) (int, bool) {
	lm := h.Landmarks
	if len(lm) < handSize {
		return 0, false
	}
	n := 0
	if strings.EqualFold(h.Handedness, "right") {
		if lm[thumbTip].X < lm[thumbIP].X {
			n++
		}
	} else if lm[thumbTip].X > lm[thumbIP].X {
		n++
	}
	for _, tip := range fingerTips {
		if lm[tip].Y < lm[tip-2].Y {
			n++
		}
	}
	return n, true
}

func GestureFor(fingers int) domain.Gesture {
	switch fingers {
	case 0:
		return domain.GestureClosed
	case 5:
		return domain.GestureOpen
	default:
		return domain.GestureUnknown
	}
}

func bodyKeypoints(pose []Landmark) *domain.BodyKeypoints {
	if len(pose) <= poseRightElbow {
		return nil
	}
	pt := func(i int) domain.Point { return domain.Point{X: pose[i].X, Y: pose[i].Y} }
	return &domain.BodyKeypoints{
		Head:          pt(poseNose),
		LeftShoulder:  pt(poseLeftShoulder),
		RightShoulder: pt(poseRightShoulder),
		LeftElbow:     pt(poseLeftElbow),
		RightElbow:    pt(poseRightElbow),
	}
}
