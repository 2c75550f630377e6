package services

const (
	MinRating = 1
	MaxRating = 5
)

// Rateable is anything carrying a running mean rating and its sample count.
type Rateable interface {
	RatingStats() (mean float64, count int)
	SetRatingStats(mean float64, count int)
}

func validateRating(op string, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return newError(ErrValidation, op, "rating must be between %d and %d, got %d", MinRating, MaxRating, rating)
	}
	return nil
}

// ApplyRating folds one rating into the target's streaming mean. No history
// is kept, so an applied rating cannot be withdrawn.
func ApplyRating(target Rateable, rating int) error {
	if err := validateRating("ratings.apply", rating); err != nil {
		return err
	}
	mean, count := target.RatingStats()
	next := (mean*float64(count) + float64(rating)) / float64(count+1)
	target.SetRatingStats(next, count+1)
	return nil
}

// CompletionRate is completed over total as a percentage, zero when nothing was assigned.
func CompletionRate(total, completed int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
