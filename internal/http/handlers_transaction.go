package http

import (
	"net/http"

	"tracker/internal/core"
)

// handleListTransactions returns every transaction, or only those of
// ?kind=, newest first.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKindParam(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var txs []core.Transaction
	if kind == "" {
		txs = s.ledger.Snapshot().Transactions
	} else {
		txs = s.ledger.TransactionsByKind(kind)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(txs).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := req.Parse(s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.ledger.AddTransaction(in.Title, in.Amount, in.Date, in.CategoryID, in.Kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.ledger.Transaction(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+string(id)).
		Body(tx).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.Transaction(transactionIDParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := transactionIDParam(r)
	var req TransactionPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	patch, err := req.Parse()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.EditTransaction(id, patch); err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.ledger.Transaction(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(transactionIDParam(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
