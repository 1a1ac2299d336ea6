package drilltools

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// MaxRetries follows the first attempt, for three attempts in all.
const MaxRetries = 2

// Retry runs op until it succeeds, fails permanently or has been tried
// 1+MaxRetries times, waiting delay between attempts. It returns the
// number of attempts made and the last error.
func Retry(ctx context.Context, delay time.Duration, pid string, op func(attempt int) error) (int, error) {
	attempts := 0
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), MaxRetries), ctx)
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(attempts)
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		logrus.WithField("pid", pid).Warnf("Attempt %d failed, retrying in %v: %v", attempts, wait, err)
	})
	return attempts, err
}
