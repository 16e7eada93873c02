package models

import "time"

// Direction is the side of a detected trading opportunity.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// RawCandidate is the wire shape produced by upstream pattern/strategy
// detectors, before normalization. Validation tags are enforced by ingress.
type RawCandidate struct {
	Symbol         string             `json:"symbol" validate:"required"`
	Direction      string             `json:"direction" validate:"required,oneof=LONG SHORT"`
	Confidence     float64            `json:"confidence" validate:"gte=0,lte=100"`
	SourceStrategy string             `json:"source_strategy" validate:"required"`
	Features       map[string]float64 `json:"features"`
	EntryPrice     float64            `json:"entry_price" validate:"gte=0"`
	TakeProfits    []float64          `json:"take_profits"`
	StopLoss       float64            `json:"stop_loss" validate:"gte=0"`
}

// SignalCandidate is a normalized candidate awaiting quality evaluation.
// Immutable once created; gates attach verdicts but never mutate core fields.
type SignalCandidate struct {
	ID             string
	Symbol         string
	Direction      Direction
	RawConfidence  float64 // 0-100
	SourceStrategy string
	DetectedAt     time.Time
	Features       map[string]float64
	EntryPrice     float64
	TakeProfits    []float64
	StopLoss       float64
}

// GateStage identifies a stage of the quality gate chain.
type GateStage int

const (
	StagePlausibility GateStage = iota
	StageQuality
	StageRegime
	StageMLWinRate
)

func (s GateStage) String() string {
	switch s {
	case StagePlausibility:
		return "plausibility"
	case StageQuality:
		return "quality"
	case StageRegime:
		return "regime"
	case StageMLWinRate:
		return "ml_winrate"
	default:
		return "unknown"
	}
}

// GateVerdict is a per-stage outcome attached to a candidate.
// A reject at stage N means no verdict exists for any later stage.
type GateVerdict struct {
	Stage  GateStage
	Passed bool
	Score  float64
	Reason string
}

// GateOutcome is the result of running a candidate through the full chain.
type GateOutcome struct {
	Candidate     *SignalCandidate
	Verdicts      []GateVerdict
	Passed        bool
	QualityScore  float64 // composite from the scoring stage
	MLProbability float64
}

// RejectedAt returns the verdict of the stage that rejected the candidate,
// or nil if all reached stages passed.
func (o *GateOutcome) RejectedAt() *GateVerdict {
	for i := range o.Verdicts {
		if !o.Verdicts[i].Passed {
			return &o.Verdicts[i]
		}
	}
	return nil
}

// BufferedSignal is a gate-passed candidate held for distribution.
type BufferedSignal struct {
	SignalCandidate
	FinalQualityScore float64
	MLProbability     float64
	BufferedAt        time.Time
}
