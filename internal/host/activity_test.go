package host

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestActivityProgress(t *testing.T) {
	t.Parallel()

	a := NewActivity(0, discardLogger())
	text, complete := a.LastProgress()
	assert.Empty(t, text)
	assert.False(t, complete)

	a.Update("Pending downloads: 2", false)
	a.Update("t - c Download complete", true)

	text, complete = a.LastProgress()
	assert.Equal(t, "t - c Download complete", text)
	assert.True(t, complete)
}

func TestActivityMessagesBounded(t *testing.T) {
	t.Parallel()

	a := NewActivity(3, discardLogger())
	for i := range 5 {
		a.Notify(fmt.Sprintf("m%d", i))
	}

	assert.Equal(t, []string{"m2", "m3", "m4"}, a.Messages())

	msgs := a.Messages()
	msgs[0] = "changed"
	assert.Equal(t, "m2", a.Messages()[0])
}

func TestActivityStops(t *testing.T) {
	t.Parallel()

	a := NewActivity(DefaultMessageLimit, discardLogger())
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Stop()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, a.Stops())
}
