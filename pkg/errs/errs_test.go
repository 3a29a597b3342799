package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("connection refused")
	wrapped := errs.Wrap(errs.KindTransport, "gitclient.Clone", "GIT_TRANSPORT", base, "clone %s", "origin")

	kind, ok := errs.KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, errs.KindTransport, kind)
	assert.True(t, errors.Is(wrapped, base))
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind errs.Kind
		want bool
	}{
		{errs.KindTransport, true},
		{errs.KindContainer, true},
		{errs.KindTimeout, true},
		{errs.KindConfig, false},
		{errs.KindAuth, false},
		{errs.KindParse, false},
		{errs.KindSchema, false},
		{errs.KindState, false},
		{errs.KindValidation, false},
	}

	for _, tc := range cases {
		err := errs.New(tc.kind, "op", "CODE", "msg", nil)
		assert.Equal(t, tc.want, errs.Retryable(err), "kind=%s", tc.kind)
	}
}

func TestKindOfNonPipelineError(t *testing.T) {
	t.Parallel()

	_, ok := errs.KindOf(errors.New("plain"))
	assert.False(t, ok)
}
