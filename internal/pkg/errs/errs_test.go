//go:build unit

package errs_test

import (
	"testing"

	"circulation-service/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	sentinel := errs.New("operation not legal")
	other := errs.New("something else")

	t.Run("matches a mark on the chain", func(t *testing.T) {
		err := errs.Mark(errs.New("hold is not pending"), sentinel)

		assert.True(t, errs.Is(err, sentinel))
		assert.False(t, errs.Is(err, other))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		marked := errs.Mark(errs.New("rating must be between 1 and 5"), sentinel)
		wrapped := errs.Wrap(marked, "record feedback")

		assert.True(t, errs.Is(wrapped, sentinel))
	})

	t.Run("matches the cause itself", func(t *testing.T) {
		cause := errs.New("boom")
		assert.True(t, errs.Is(errs.Mark(cause, sentinel), cause))
	})

	t.Run("nil mark input returns the mark", func(t *testing.T) {
		assert.True(t, errs.Is(errs.Mark(nil, sentinel), sentinel))
	})
}
