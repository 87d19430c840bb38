package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// maxDepth caps the depth query so a request cannot walk the whole book.
const maxDepth = 200

// BookReader defines the orderbook queries the book handler requires.
type BookReader interface {
	BestBidAsk() domain.BookTicker
	Depth(n int) (bids, asks []domain.PriceLevel)
	LastSequence() uint64
}

// BookHandler serves the local orderbook mirror.
type BookHandler struct {
	book   BookReader
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler over the given book engine.
func NewBookHandler(book BookReader, logger *slog.Logger) *BookHandler {
	return &BookHandler{book: book, logger: logHandler(logger, "book")}
}

// levelDTO is one price level in display units.
type levelDTO struct {
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
	Orders    int       `json:"orders,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// bookResponse wraps the depth query response.
type bookResponse struct {
	Symbol   string     `json:"symbol"`
	Sequence uint64     `json:"sequence"`
	BestBid  *float64   `json:"best_bid"`
	BestAsk  *float64   `json:"best_ask"`
	Bids     []levelDTO `json:"bids"`
	Asks     []levelDTO `json:"asks"`
}

// GetBook returns the top N levels per side plus the current touch.
// GET /api/v1/book?depth=25
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	depth := queryInt(r, "depth", 25, maxDepth)

	ticker := h.book.BestBidAsk()
	bids, asks := h.book.Depth(depth)

	resp := bookResponse{
		Symbol:   ticker.Symbol,
		Sequence: h.book.LastSequence(),
		Bids:     toLevelDTOs(bids),
		Asks:     toLevelDTOs(asks),
	}
	if ticker.HasBid {
		bb := ticker.BestBid.Float64()
		resp.BestBid = &bb
	}
	if ticker.HasAsk {
		ba := ticker.BestAsk.Float64()
		resp.BestAsk = &ba
	}

	writeJSON(w, http.StatusOK, resp)
}

func toLevelDTOs(levels []domain.PriceLevel) []levelDTO {
	out := make([]levelDTO, 0, len(levels))
	for _, l := range levels {
		out = append(out, levelDTO{
			Price:     l.Price.Float64(),
			Qty:       l.Qty,
			Orders:    l.Orders,
			UpdatedAt: l.UpdatedAt,
		})
	}
	return out
}
