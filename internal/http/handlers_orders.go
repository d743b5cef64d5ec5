package http

import (
	"net/http"

	"canteen/internal/core"
	"canteen/internal/log"
)

// handleListOrders honours the cleared, food and student filters. The
// student filter is overridden for anyone who is not a manager.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	q := r.URL.Query()
	var (
		filter core.OrderFilter
		err    error
	)
	if filter.Cleared, err = queryBool(q, "cleared"); err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	if filter.FoodID, err = queryID(q, "food"); err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	if filter.StudentID, err = queryID(q, "student"); err != nil {
		writeError(w, r, scopeBody, err)
		return
	}

	orders, err := s.deps.Orders.List(r.Context(), caller, filter)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(orders).Write(w)
}

// handleCreateOrder reads only food_id and quantity. Any student field in
// the body is ignored; the order always belongs to the caller.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		malformedBody(w, r, err)
		return
	}
	foodID, err := p.Int("food_id")
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	quantity := int64(1)
	if p.Has("quantity") {
		if quantity, err = p.Int("quantity"); err != nil {
			writeError(w, r, scopeBody, err)
			return
		}
	}

	order, err := s.deps.Orders.Place(r.Context(), caller, foodID, int(quantity))
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}

	s.metrics.ordersPlaced.Add(1)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogOrderPlaced(r.Context(),
		order.ID, order.StudentID, foodID, order.Quantity, order.TotalPrice.String())
	NewJSONResponse().Status(http.StatusCreated).Payload(order).Write(w)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	order, err := s.deps.Orders.Get(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(order).Write(w)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	if err := s.deps.Orders.Delete(r.Context(), caller, id); err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleClearOrder(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	if _, err := s.deps.Orders.Clear(r.Context(), caller, id); err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	s.metrics.ordersCleared.Add(1)
	NewJSONResponse().Message("Order cleared successfully").Write(w)
}

func (s *Server) handleStudentDues(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	due, err := s.deps.Orders.Due(r.Context(), caller)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(map[string]core.Money{"due_amount": due}).Write(w)
}
