package handler

import (
	"net/http"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Expenses
// ============================================================

func listExpensesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses")
		defer span.End()

		q := r.URL.Query()
		filter := domain.ExpenseFilter{
			Category: domain.ExpenseCategory(q.Get("category")),
			Type:     domain.ExpenseType(q.Get("expense_type")),
			Status:   domain.ExpenseStatus(q.Get("status")),
			DateFrom: q.Get("date_from"),
			DateTo:   q.Get("date_to"),
		}

		expenses, err := svc.ListExpenses(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
	}
}

func createExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/expenses")
		defer span.End()

		var req domain.ExpenseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		expense, err := svc.CreateExpense(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, expense)
	}
}

func getExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses/{expenseId}")
		defer span.End()

		expense, err := svc.GetExpense(ctx, chi.URLParam(r, "expenseId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, expense)
	}
}

func updateExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/expenses/{expenseId}")
		defer span.End()

		var req domain.ExpenseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		expense, err := svc.UpdateExpense(ctx, chi.URLParam(r, "expenseId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, expense)
	}
}

func deleteExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/expenses/{expenseId}")
		defer span.End()

		expenseID := chi.URLParam(r, "expenseId")
		if err := svc.DeleteExpense(ctx, expenseID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDeleted(w, expenseID)
	}
}

// balanceHandler recomputes the partner balance from scratch on every call.
func balanceHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses/balance")
		defer span.End()

		balance, err := svc.GetBalance(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, balance)
	}
}

// ============================================================
// Settlements
// ============================================================

func listSettlementsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/settlements")
		defer span.End()

		settlements, err := svc.ListSettlements(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settlements": settlements})
	}
}

func createSettlementHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/settlements")
		defer span.End()

		var req domain.SettlementRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		settlement, err := svc.CreateSettlement(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, settlement)
	}
}

func getSettlementHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/settlements/{settlementId}")
		defer span.End()

		settlement, err := svc.GetSettlement(ctx, chi.URLParam(r, "settlementId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, settlement)
	}
}
