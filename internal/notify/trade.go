package notify

import (
	"context"
	"strings"
	"time"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// TradeObserver turns journal records into chat alerts. It satisfies
// journal.Observer.
type TradeObserver struct {
	n *Notifier
}

func NewTradeObserver(n *Notifier) *TradeObserver {
	return &TradeObserver{n: n}
}

func (o *TradeObserver) Name() string { return "notify" }

func (o *TradeObserver) OnTrade(ctx context.Context, rec domain.TradeRecord) error {
	return o.n.Notify(ctx, TradeMessage(rec))
}

// TradeEvent maps a record to its filter name. Simulated trades get their
// own event so real-money alerts can be isolated.
func TradeEvent(rec domain.TradeRecord) string {
	switch {
	case rec.IsSimulated():
		return EventSimulate
	case rec.Action == domain.TradeActionSell && rec.DumpSignal:
		return EventDump
	case rec.Action == domain.TradeActionSell:
		return EventSell
	default:
		return EventBuy
	}
}

// TradeMessage renders rec as an alert.
func TradeMessage(rec domain.TradeRecord) Message {
	msg := Message{
		Event: TradeEvent(rec),
		Title: strings.ToUpper(string(rec.Action)) + " " + rec.Token,
	}
	if rec.IsSimulated() {
		msg.Title = "[SIM] " + msg.Title
	}
	msg.Add("price", rec.Price.String())
	msg.Add("size", rec.Size.String())
	msg.Add("venue", rec.Venue)
	msg.Add("tx", rec.TxID)
	msg.Add("exit", rec.ExitReason)
	if rec.Latency > 0 {
		msg.Add("latency", rec.Latency.Round(time.Millisecond).String())
	}
	if rec.DumpSignal {
		msg.Note = "whale selling detected"
	}
	return msg
}
