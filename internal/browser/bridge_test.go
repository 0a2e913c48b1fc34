package browser

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CloseReportsReleaseError(t *testing.T) {
	var releases, cancels int
	s := &session{
		ctx:    context.Background(),
		cancel: func() { cancels++ },
		release: func(context.Context) error {
			releases++
			return errors.New("target detach failed")
		},
	}

	err := s.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target detach failed")

	assert.Equal(t, err, s.Close(context.Background()))
	assert.Equal(t, 1, releases)
	assert.Equal(t, 1, cancels)
}

func TestSession_CloseIgnoresCanceledTab(t *testing.T) {
	s := &session{
		ctx:     context.Background(),
		cancel:  func() {},
		release: func(context.Context) error { return context.Canceled },
	}
	assert.NoError(t, s.Close(context.Background()))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc ...", truncate("abcdef", 3))
	assert.Equal(t, "short", truncate("short", 10))

	got := truncate("café au lait", 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "caf ...", got)
}
