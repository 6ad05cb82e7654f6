package locator

// Strategy is the locate path chosen for one call.
type Strategy int

const (
	// StrategyOCROnly reads text from the full image and keeps hits containing the target.
	StrategyOCROnly Strategy = iota + 1
	// StrategyVisionOnly asks the vision model and ranks its candidates against the target.
	StrategyVisionOnly
	// StrategyHybrid scopes an OCR pass with the vision model's best candidate.
	StrategyHybrid
)

func (s Strategy) String() string {
	switch s {
	case StrategyOCROnly:
		return "ocr_only"
	case StrategyVisionOnly:
		return "vision_only"
	case StrategyHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// SelectStrategy is the decision table for a locate call:
//
//	vision disabled                          -> OCR only
//	vision enabled, no target or OCR unusable -> vision only
//	vision enabled, target, OCR usable       -> hybrid
func SelectStrategy(visionEnabled, ocrAvailable, useOCR bool, target string) Strategy {
	if !visionEnabled {
		return StrategyOCROnly
	}
	if target != "" && ocrAvailable && useOCR {
		return StrategyHybrid
	}
	return StrategyVisionOnly
}
