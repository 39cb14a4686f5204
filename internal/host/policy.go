package host

import (
	"time"

	"github.com/avast/retry-go/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// RetryPolicy bounds how often a step reporting a TransientFailure is re-issued
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per step, first attempt included
	MaxAttempts uint
	// WaitMin is the delay before the first retry
	WaitMin time.Duration
	// WaitMax caps the delay between two attempts
	WaitMax time.Duration
	// BackOffEnabled doubles the delay on every retry instead of using a fixed delay
	BackOffEnabled bool
	// MaxJitter is the random delay added to every wait
	MaxJitter time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		WaitMin:        200 * time.Millisecond,
		WaitMax:        5 * time.Second,
		BackOffEnabled: true,
		MaxJitter:      50 * time.Millisecond,
	}
}

// Validate ensures the policy terminates
func (p RetryPolicy) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxAttempts, validation.Required, validation.Min(uint(1))),
		validation.Field(&p.WaitMin, validation.Min(time.Duration(0))),
		validation.Field(&p.WaitMax, validation.Min(p.WaitMin)),
		validation.Field(&p.MaxJitter, validation.Min(time.Duration(0))),
	)
}

func (p RetryPolicy) options() []retry.Option {
	var base retry.DelayTypeFunc = retry.FixedDelay
	if p.BackOffEnabled {
		base = retry.BackOffDelay
	}
	delayType := base
	if p.MaxJitter > 0 {
		delayType = retry.CombineDelay(base, retry.RandomDelay)
	}
	opts := []retry.Option{
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.WaitMin),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
	}
	if p.WaitMax > 0 {
		opts = append(opts, retry.MaxDelay(p.WaitMax))
	}
	if p.MaxJitter > 0 {
		opts = append(opts, retry.MaxJitter(p.MaxJitter))
	}
	return opts
}
