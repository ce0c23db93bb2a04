package analytics

import "math"

// Rates holds the rough per-session cost model parameters. The model is a
// deliberate back-of-the-envelope: flat price per implementation attempt,
// scaled by how much slower than baseline the session ran.
type Rates struct {
	PerAttemptUSD   float64 `yaml:"per_attempt_usd" mapstructure:"per_attempt_usd"`
	BaselineMinutes float64 `yaml:"baseline_minutes" mapstructure:"baseline_minutes"`
}

// DefaultRates returns the default cost model parameters.
func DefaultRates() Rates {
	return Rates{
		PerAttemptUSD:   1.50,
		BaselineMinutes: 5,
	}
}

// Calculator computes estimated session costs from the rate model.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Session estimates the cost of a session with the given number of
// implementation attempts and average minutes per attempt, rounded to
// cents.
func (c *Calculator) Session(attempts int, avgMinutes float64) float64 {
	if attempts == 0 {
		return 0
	}
	scale := 1.0
	if c.rates.BaselineMinutes > 0 && avgMinutes > 0 {
		scale = avgMinutes / c.rates.BaselineMinutes
	}
	return round2(float64(attempts) * c.rates.PerAttemptUSD * scale)
}

// ROI returns delivered value over cost, rounded to one decimal. Zero cost
// yields zero rather than infinity.
func (c *Calculator) ROI(deliveredUSD, costUSD float64) float64 {
	if costUSD <= 0 {
		return 0
	}
	return round1(deliveredUSD / costUSD)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
