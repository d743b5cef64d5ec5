package http

import (
	"net/http"

	"canteen/internal/core"
)

// Foods

func (s *Server) handleListFoods(w http.ResponseWriter, r *http.Request, _ core.Identity) {
	available, err := queryBool(r.URL.Query(), "available")
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	foods, err := s.deps.Foods.List(r.Context(), available)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(foods).Write(w)
}

func (s *Server) handleGetFood(w http.ResponseWriter, r *http.Request, _ core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	food, err := s.deps.Foods.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(food).Write(w)
}

// parseFood reads the writable food fields. Available defaults to true on
// create and to the stored value on update.
func parseFood(r *http.Request, base core.FoodItem) (core.FoodItem, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.FoodItem{}, core.NewValidationError("", "Malformed request body.")
	}

	f := base
	f.Name = p.Get("name")
	f.Description = p.Get("description")
	if p.Has("image") {
		f.Image = p.Get("image")
	}

	var err error
	if f.Price, err = p.Money("price"); err != nil {
		return core.FoodItem{}, err
	}
	if f.CostPrice, err = p.Money("cost_price"); err != nil {
		return core.FoodItem{}, err
	}
	if f.Available, err = p.Bool("available", base.Available); err != nil {
		return core.FoodItem{}, err
	}
	return f, nil
}

func (s *Server) handleCreateFood(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	if !caller.CanManage() {
		writeError(w, r, scopePath, core.NewPermissionError("create food"))
		return
	}
	f, err := parseFood(r, core.FoodItem{Available: true})
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	created, err := s.deps.Foods.Create(r.Context(), caller, f)
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Payload(created).Write(w)
}

func (s *Server) handleUpdateFood(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	if !caller.CanManage() {
		writeError(w, r, scopePath, core.NewPermissionError("update food"))
		return
	}
	existing, err := s.deps.Foods.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	f, err := parseFood(r, existing)
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	updated, err := s.deps.Foods.Update(r.Context(), caller, f)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(updated).Write(w)
}

func (s *Server) handleDeleteFood(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	if err := s.deps.Foods.Delete(r.Context(), caller, id); err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Expenses

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	q := r.URL.Query()
	filter := core.ExpenseFilter{Category: core.ExpenseCategory(sanitizeInput(q.Get("category")))}
	var err error
	if filter.Start, err = queryDate(q, "start"); err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	if filter.End, err = queryDate(q, "end"); err != nil {
		writeError(w, r, scopeBody, err)
		return
	}

	expenses, err := s.deps.Expenses.List(r.Context(), caller, filter)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(expenses).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	e, err := s.deps.Expenses.Get(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(e).Write(w)
}

func parseExpense(r *http.Request) (core.Expense, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.Expense{}, core.NewValidationError("", "Malformed request body.")
	}

	e := core.Expense{
		Title:    p.Get("title"),
		Category: core.ExpenseCategory(p.Get("category")),
		Notes:    p.Get("notes"),
	}
	var err error
	if e.Amount, err = p.Money("amount"); err != nil {
		return core.Expense{}, err
	}
	if !p.Has("date") || p.Get("date") == "" {
		return core.Expense{}, core.NewValidationError("date", "This field is required.")
	}
	if e.Date, err = p.Date("date"); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	if !caller.CanManage() {
		writeError(w, r, scopePath, core.NewPermissionError("create expense"))
		return
	}
	e, err := parseExpense(r)
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	created, err := s.deps.Expenses.Create(r.Context(), caller, e)
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Payload(created).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	if !caller.CanManage() {
		writeError(w, r, scopePath, core.NewPermissionError("update expense"))
		return
	}
	e, err := parseExpense(r)
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	e.ID = id
	updated, err := s.deps.Expenses.Update(r.Context(), caller, e)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(updated).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	if err := s.deps.Expenses.Delete(r.Context(), caller, id); err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
