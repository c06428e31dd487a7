package evaluation

import "math"

// MaxWeeklyPoints is the most points a student can earn in one week.
const MaxWeeklyPoints = 15

// Rating bounds.
const (
	MinRating = 0.0
	MaxRating = 10.0
)

// Stars is a discrete 0-5 tier derived from a rating.
// Weekly evaluations are always 1-5; 0 only marks an aggregate with no data.
type Stars int

const (
	NoStars  Stars = 0
	MinStars Stars = 1
	MaxStars Stars = 5
)

// starTiers is ordered highest tier first.
var starTiers = []struct {
	minRating float64
	stars     Stars
}{
	{9.5, 5},
	{8.0, 4},
	{6.0, 3},
	{4.0, 2},
}

// Score is a rating together with its star tier.
type Score struct {
	Rating float64
	Stars  Stars
}

// Rate converts a weekly point total into a clamped rating and a star tier.
// The tier never drops below one star, even for a rating of 0.
func Rate(totalPoints float64) Score {
	raw := totalPoints / MaxWeeklyPoints * 10
	rating := roundTenth(clamp(raw, MinRating, MaxRating))
	return Score{Rating: rating, Stars: starsFor(rating)}
}

// AggregateRatings averages already-computed weekly ratings.
// An empty input yields the (0, 0) "no data" sentinel instead of the weekly 1-star floor.
func AggregateRatings(ratings []float64) Score {
	if len(ratings) == 0 {
		return Score{Rating: 0, Stars: NoStars}
	}

	var sum float64
	for _, r := range ratings {
		sum += r
	}
	rating := roundTenth(sum / float64(len(ratings)))
	return Score{Rating: rating, Stars: starsFor(rating)}
}

func starsFor(rating float64) Stars {
	for _, tier := range starTiers {
		if rating >= tier.minRating {
			return tier.stars
		}
	}
	return MinStars
}

// roundTenth rounds half away from zero; all inputs here are non-negative,
// where this matches half-up rounding.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
