package engine

import (
	"sort"

	"github.com/tradefolio/tradefolio/internal/domain"
)

// Epsilon below which a residual lot quantity is treated as fully consumed.
const Epsilon = 1e-4

// LotQueue is the ordered FIFO inventory of open purchase lots for one
// symbol. Queue order is acquisition order; sells always consume the front.
// A queue must not be shared across concurrent calculations.
type LotQueue struct {
	lots []domain.Lot
}

// Take records how much of which lot a sell consumed.
type Take struct {
	Lot domain.Lot
	Qty float64
}

// Push appends a freshly acquired lot at the back of the queue.
func (q *LotQueue) Push(l domain.Lot) {
	q.lots = append(q.lots, l)
}

// Consume removes up to qty units from the front of the queue and returns
// the individual takes plus any quantity left uncovered when the queue runs
// dry. Partially consumed lots stay at the front with reduced quantity.
func (q *LotQueue) Consume(qty float64) (takes []Take, leftover float64) {
	for qty > Epsilon && len(q.lots) > 0 {
		front := &q.lots[0]
		take := front.Quantity
		if take > qty {
			take = qty
		}
		takes = append(takes, Take{Lot: *front, Qty: take})
		front.Quantity -= take
		qty -= take
		if front.Quantity <= Epsilon {
			q.lots = q.lots[1:]
		}
	}
	if qty > Epsilon {
		return takes, qty
	}
	return takes, 0
}

// Quantity is the total open quantity across the queue.
func (q *LotQueue) Quantity() float64 {
	var total float64
	for _, l := range q.lots {
		total += l.Quantity
	}
	return total
}

// AvgPrice is the quantity-weighted average net unit price of the queue.
func (q *LotQueue) AvgPrice() float64 {
	var cost, qty float64
	for _, l := range q.lots {
		cost += l.Quantity * l.NetUnitPrice
		qty += l.Quantity
	}
	if qty <= 0 {
		return 0
	}
	return cost / qty
}

// Lots returns a copy of the open lots in FIFO order.
func (q *LotQueue) Lots() []domain.Lot {
	out := make([]domain.Lot, len(q.lots))
	copy(out, q.lots)
	return out
}

// Len reports the number of open lots.
func (q *LotQueue) Len() int {
	return len(q.lots)
}

// Ledger indexes lot queues by symbol. Each queue is owned exclusively by
// its symbol; symbols are materialized lazily on first buy or sell.
type Ledger map[string]*LotQueue

// Queue returns the symbol's queue, creating it when absent.
func (l Ledger) Queue(symbol string) *LotQueue {
	q, ok := l[symbol]
	if !ok {
		q = &LotQueue{}
		l[symbol] = q
	}
	return q
}

// Symbols lists the ledger's symbols in sorted order so exports do not
// depend on map iteration order.
func (l Ledger) Symbols() []string {
	symbols := make([]string, 0, len(l))
	for s := range l {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Holdings flattens the ledger into per-symbol holdings, skipping symbols
// whose open quantity has dropped to dust.
func (l Ledger) Holdings() []domain.Holding {
	var out []domain.Holding
	for _, symbol := range l.Symbols() {
		q := l[symbol]
		qty := q.Quantity()
		if qty <= Epsilon {
			continue
		}
		out = append(out, domain.Holding{
			Symbol:   symbol,
			Quantity: qty,
			AvgPrice: q.AvgPrice(),
			Lots:     q.Lots(),
		})
	}
	return out
}
