package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

func TestEvaluateExit(t *testing.T) {
	trailing, mult := d("0.15"), d("2.0")
	tests := []struct {
		name  string
		entry string
		peak  string
		price string
		want  ExitReason
	}{
		{"flat", "1", "1", "1", ExitNone},
		{"rising", "1", "1.5", "1.9", ExitNone},
		{"retrace within band", "1", "1.9", "1.62", ExitNone},
		{"retrace past band", "1", "1.9", "1.55", ExitTrailingStop},
		{"exact take profit", "1", "1", "2.0", ExitTakeProfit},
		{"above take profit", "1", "1", "2.1", ExitTakeProfit},
		{"trailing beats take profit", "1", "3", "2.5", ExitTrailingStop},
		{"just below entry", "1", "1", "0.99", ExitStopLoss},
		{"deep drop trips trailing first", "1", "1", "0.5", ExitTrailingStop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := domain.Position{EntryPrice: d(tt.entry), PeakPrice: d(tt.peak)}
			assert.Equal(t, tt.want, EvaluateExit(pos, d(tt.price), trailing, mult))
		})
	}
}

func TestEvaluateExitWithoutTrailing(t *testing.T) {
	pos := domain.Position{EntryPrice: d("1"), PeakPrice: d("1")}
	assert.Equal(t, ExitStopLoss, EvaluateExit(pos, d("0.5"), d("0"), d("2")))
}

func TestExitReasonString(t *testing.T) {
	assert.Equal(t, "trailing_stop", ExitTrailingStop.String())
	assert.Equal(t, "dump_signal", ExitDumpSignal.String())
	assert.Equal(t, "none", ExitNone.String())
}

func TestProceeds(t *testing.T) {
	pos := domain.Position{EntryPrice: d("2"), Size: d("0.01")}
	assert.True(t, Proceeds(pos, d("3")).Equal(d("0.015")))
}

func TestCallWithBudget(t *testing.T) {
	v, _, err := callWithBudget(context.Background(), 50*time.Millisecond, func(context.Context) (int, error) {
		return 7, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, v)

	start := time.Now()
	_, _, err = callWithBudget(context.Background(), 10*time.Millisecond, func(context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	assert.True(t, errors.Is(err, errBudgetExceeded))
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	_, _, err = callWithBudget(context.Background(), 0, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}
