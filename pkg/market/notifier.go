package market

// Events pushed through the Notifier.
const (
	// EventMarket carries a Book to every participant after each
	// state-changing operation.
	EventMarket = "offers_and_txs"

	// EventAccepted carries an AcceptNotice to a proposer whose standing
	// offer was just accepted.
	EventAccepted = "offer_accepted"
)

// Notifier delivers engine events to participants. Delivery is best-effort
// and fire-and-forget; the engine never blocks on it.
type Notifier interface {
	BroadcastTo(participants []string, payload any, event string)
	DirectNotify(participant string, payload any, event string)
}

// NopNotifier drops everything. Default when no transport is attached.
type NopNotifier struct{}

func (NopNotifier) BroadcastTo(_ []string, _ any, _ string) {}
func (NopNotifier) DirectNotify(_ string, _ any, _ string)  {}

var _ Notifier = NopNotifier{}
