package handler

import (
	"net/http"
	"strconv"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/service"

	"go.uber.org/zap"
)

// parsePeriod reads the ?period= query parameter, defaulting to all time.
func parsePeriod(r *http.Request) (domain.Period, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return domain.PeriodAll, true
	}
	period := domain.Period(raw)
	return period, period.Valid()
}

func dashboardStatsHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/stats")
		defer span.End()

		period, ok := parsePeriod(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "period must be one of all, month, quarter, year")
			return
		}

		stats, err := svc.GetStats(ctx, period)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func dashboardRenewalsHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/renewals")
		defer span.End()

		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "days must be an integer")
				return
			}
			days = parsed
		}

		renewals, err := svc.GetRenewals(ctx, days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"renewals": renewals})
	}
}

func dashboardOutstandingHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/outstanding")
		defer span.End()

		outstanding, err := svc.GetOutstanding(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"outstanding": outstanding})
	}
}

func dashboardEarningsHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/partner-earnings")
		defer span.End()

		period, ok := parsePeriod(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "period must be one of all, month, quarter, year")
			return
		}

		earnings, err := svc.GetPartnerEarnings(ctx, period)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, earnings)
	}
}

// dashboardOverviewHandler serves the four rollups in one response for the
// landing page.
func dashboardOverviewHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/overview")
		defer span.End()

		period, ok := parsePeriod(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "period must be one of all, month, quarter, year")
			return
		}

		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "days must be an integer")
				return
			}
			days = parsed
		}

		overview, err := svc.GetOverview(ctx, period, days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}
