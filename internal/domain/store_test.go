package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

func TestListOptsContains(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(time.Hour)
	opts := domain.ListOpts{Since: &since, Until: &until}
	assert.True(t, opts.Contains(since))
	assert.True(t, opts.Contains(until))
	assert.False(t, opts.Contains(since.Add(-time.Second)))
	assert.False(t, opts.Contains(until.Add(time.Second)))
	assert.True(t, domain.ListOpts{}.Contains(since))
}
