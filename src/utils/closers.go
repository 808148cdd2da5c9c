package utils

import (
	"errors"
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"
)

type namedCloser struct {
	name string
	fn   func() error
}

// Closers runs registered cleanups in reverse order. Every cleanup runs even
// when an earlier one fails.
type Closers struct {
	mu  sync.Mutex
	fns []namedCloser
}

func (c *Closers) Add(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, namedCloser{name: name, fn: fn})
}

// Close runs and forgets all cleanups and joins their errors.
func (c *Closers) Close() error {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i].fn(); err != nil {
			logger.WithError(err).WithField("closer", fns[i].name).Error("cleanup failed")
			errs = append(errs, fmt.Errorf("%s: %w", fns[i].name, err))
		}
	}
	return errors.Join(errs...)
}
