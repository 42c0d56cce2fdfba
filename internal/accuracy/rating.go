package accuracy

import "PredictionLedger/internal/model"

// Rating is a presentation grade derived from a summary. Never stored.
type Rating string

const (
	RatingGood Rating = "good"
	RatingFair Rating = "fair"
	RatingPoor Rating = "poor"
	RatingNone Rating = "none" // no settled data to grade
)

// mapeBands maps an average MAPE to a rating; lower is better.
var mapeBands = []struct {
	MaxMape float64
	Rating  Rating
}{
	{2, RatingGood},
	{5, RatingFair},
}

// directionBands maps a direction accuracy rate to a rating; higher is better.
var directionBands = []struct {
	MinRate float64
	Rating  Rating
}{
	{70, RatingGood},
	{50, RatingFair},
}

// RateMapeValue grades a raw MAPE percentage.
func RateMapeValue(mape float64) Rating {
	for _, b := range mapeBands {
		if mape <= b.MaxMape {
			return b.Rating
		}
	}
	return RatingPoor
}

// RateDirectionValue grades a raw direction accuracy percentage.
func RateDirectionValue(rate float64) Rating {
	for _, b := range directionBands {
		if rate >= b.MinRate {
			return b.Rating
		}
	}
	return RatingPoor
}

// RateMape grades the summary's average MAPE.
func RateMape(s model.AccuracySummary) Rating {
	if !s.HasMapeData {
		return RatingNone
	}
	return RateMapeValue(s.AverageMape)
}

// RateDirection grades the summary's direction accuracy.
func RateDirection(s model.AccuracySummary) Rating {
	if !s.HasDirectionData {
		return RatingNone
	}
	return RateDirectionValue(s.DirectionAccuracyRate)
}
