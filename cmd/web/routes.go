package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/dkrasnov/pickpool/internal/httputil"
	"github.com/dkrasnov/pickpool/internal/ledger"
	"github.com/dkrasnov/pickpool/internal/middleware"
	"github.com/dkrasnov/pickpool/internal/payment"
	"github.com/dkrasnov/pickpool/internal/service"
	"github.com/dkrasnov/pickpool/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func newRouter(dbConn *sqlx.DB, sessionManager *scs.SessionManager, operatorToken string, linkBuilder payment.LinkBuilder) http.Handler {
	contestStore := store.NewContestStore(dbConn)
	balances := ledger.New(dbConn)
	observers := []service.Observer{service.LogObserver{}}

	contestService := service.NewContestService(dbConn, contestStore, observers...)
	settlementService := service.NewSettlementService(dbConn, contestStore, balances, observers...)
	entryService := service.NewEntryService(dbConn, contestStore, balances)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)

	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.BadRequest(w, "invalid request body", err)
			return
		}
		if subtle.ConstantTimeCompare([]byte(body.Token), []byte(operatorToken)) != 1 {
			http.Error(w, "invalid operator token", http.StatusUnauthorized)
			return
		}
		middleware.MarkOperator(sessionManager, r)
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"operator": true})
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		sessionManager.Destroy(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/contests", func(w http.ResponseWriter, r *http.Request) {
		contests, err := contestService.ListContests(r.Context())
		if err != nil {
			httputil.WriteError(w, "Failed to list contests", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, contests)
	})

	r.Get("/contests/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "invalid contest ID", err)
			return
		}
		data, err := contestService.GetContestData(r.Context(), id)
		if err != nil {
			httputil.WriteError(w, "Failed to get contest", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"contest": data.Contest,
			"entries": data.Entries,
		})
	})

	r.Post("/contests/{id}/entries", func(w http.ResponseWriter, r *http.Request) {
		contestID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "invalid contest ID", err)
			return
		}
		var body struct {
			UserID uuid.UUID        `json:"user_id"`
			Picks  []contest.Answer `json:"picks"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.BadRequest(w, "invalid request body", err)
			return
		}
		for _, pick := range body.Picks {
			if pick != contest.AnswerA && pick != contest.AnswerB {
				httputil.BadRequest(w, `every pick must be "A" or "B"`, nil)
				return
			}
		}
		entry, err := entryService.SubmitEntry(r.Context(), contestID, body.UserID, body.Picks)
		if err != nil {
			httputil.WriteError(w, "Failed to submit entry", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, entry)
	})

	r.Get("/users/{id}/balance", func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "invalid user ID", err)
			return
		}
		balance, err := entryService.Balance(r.Context(), userID)
		if err != nil {
			httputil.WriteError(w, "Failed to get balance", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"user_id": userID,
			"balance": balance,
		})
	})

	r.Post("/users/{id}/deposit", func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "invalid user ID", err)
			return
		}
		var body struct {
			Amount      decimal.Decimal `json:"amount"`
			Destination string          `json:"destination"`
			Currency    string          `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.BadRequest(w, "invalid request body", err)
			return
		}
		balance, err := entryService.Deposit(r.Context(), userID, body.Amount)
		if err != nil {
			httputil.WriteError(w, "Failed to deposit", err)
			return
		}

		resp := map[string]interface{}{
			"user_id": userID,
			"balance": balance,
		}
		if body.Destination != "" {
			resp["payment_link"] = linkBuilder.BuildLink(payment.Request{
				Destination: body.Destination,
				Amount:      body.Amount,
				Currency:    body.Currency,
				Tag:         userID.String(),
			})
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOperator(sessionManager))

		r.Post("/contests", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Title     string          `json:"title"`
				EntryFee  decimal.Decimal `json:"entry_fee"`
				PrizePool decimal.Decimal `json:"prize_pool"`
				Choices   []struct {
					OptionA string `json:"option_a"`
					OptionB string `json:"option_b"`
				} `json:"choices"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "invalid request body", err)
				return
			}
			if body.Title == "" {
				httputil.BadRequest(w, "title is required", nil)
				return
			}
			choices := make([]service.ChoiceInput, 0, len(body.Choices))
			for _, c := range body.Choices {
				choices = append(choices, service.ChoiceInput{OptionA: c.OptionA, OptionB: c.OptionB})
			}
			created, err := contestService.CreateContest(r.Context(), body.Title, body.EntryFee, body.PrizePool, choices)
			if err != nil {
				httputil.WriteError(w, "Failed to create contest", err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, created)
		})

		r.Post("/contests/{id}/publish", func(w http.ResponseWriter, r *http.Request) {
			transitionHandler(w, r, contestService.PublishContest)
		})

		r.Post("/contests/{id}/lock", func(w http.ResponseWriter, r *http.Request) {
			transitionHandler(w, r, contestService.LockContest)
		})

		r.Put("/contests/{id}/choices/{choiceID}/answer", func(w http.ResponseWriter, r *http.Request) {
			contestID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "invalid contest ID", err)
				return
			}
			choiceID, err := uuid.Parse(chi.URLParam(r, "choiceID"))
			if err != nil {
				httputil.BadRequest(w, "invalid choice ID", err)
				return
			}
			var body struct {
				Answer contest.Answer `json:"answer"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "invalid request body", err)
				return
			}
			if body.Answer != contest.AnswerA && body.Answer != contest.AnswerB {
				httputil.BadRequest(w, `answer must be "A" or "B"`, nil)
				return
			}
			updated, err := contestService.SetChoiceAnswer(r.Context(), contestID, choiceID, body.Answer)
			if err != nil {
				httputil.WriteError(w, "Failed to set answer", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, updated)
		})

		r.Post("/contests/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
			settlementHandler(w, r, "Failed to resolve contest", func(id uuid.UUID) (interface{}, error) {
				return settlementService.ResolveContest(r.Context(), id)
			})
		})

		r.Post("/contests/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
			settlementHandler(w, r, "Failed to cancel contest", func(id uuid.UUID) (interface{}, error) {
				return settlementService.CancelContest(r.Context(), id)
			})
		})

		r.Post("/contests/{id}/payout", func(w http.ResponseWriter, r *http.Request) {
			settlementHandler(w, r, "Failed to pay out contest", func(id uuid.UUID) (interface{}, error) {
				return settlementService.PayoutWinners(r.Context(), id)
			})
		})

		r.Delete("/contests/{id}", func(w http.ResponseWriter, r *http.Request) {
			settlementHandler(w, r, "Failed to delete contest", func(id uuid.UUID) (interface{}, error) {
				return settlementService.DeleteContest(r.Context(), id)
			})
		})
	})

	return r
}

func transitionHandler(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*contest.Contest, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid contest ID", err)
		return
	}
	updated, err := fn(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to transition contest", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func settlementHandler(w http.ResponseWriter, r *http.Request, msg string, fn func(id uuid.UUID) (interface{}, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid contest ID", err)
		return
	}
	result, err := fn(id)
	if err != nil {
		httputil.WriteError(w, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
