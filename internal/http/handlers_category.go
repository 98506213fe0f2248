package http

import (
	"net/http"
)

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := req.Parse()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.ledger.AddCategory(in.Name, in.Color, in.Symbol)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cat, err := s.ledger.Category(id)
	if err != nil {
		// Deleted concurrently between the two calls.
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/categories/"+string(id)).
		Body(cat).
		Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := s.ledger.Category(categoryIDParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(cat).Write(w)
}

// handleUpdateCategory replaces name, color and symbol. Totals are untouched.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := categoryIDParam(r)
	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := req.Parse()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.EditCategory(id, in.Name, in.Color, in.Symbol); err != nil {
		s.fail(w, r, err)
		return
	}
	cat, err := s.ledger.Category(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(cat).Write(w)
}

// handleDeleteCategory removes the category and all of its transactions.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCategory(categoryIDParam(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCategoryTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.TransactionsByCategory(categoryIDParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(txs).Write(w)
}
