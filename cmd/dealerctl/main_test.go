package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = newLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = newLogger("loud")
	require.Error(t, err)
}

func TestRequestQuoteFlagErrors(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		flags quoteFlags
		args  []string
	}{
		"pair with tickers": {flags: quoteFlags{pair: "WETH/DAI", size: "1"}, args: []string{"DAI", "WETH"}},
		"bad pair size":     {flags: quoteFlags{pair: "WETH/DAI", size: "lots"}},
		"one ticker":        {flags: quoteFlags{takerSize: "1"}, args: []string{"DAI"}},
		"no size":           {args: []string{"DAI", "WETH"}},
		"both sizes":        {flags: quoteFlags{makerSize: "1", takerSize: "1"}, args: []string{"DAI", "WETH"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := requestQuote(ctx, tc.flags, tc.args)
			require.Error(t, err)
		})
	}
}
