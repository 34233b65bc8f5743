//go:build e2e

package circulation_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"circulation-service/tests/common/dbtest"
	commonhttp "circulation-service/tests/common/httptest"
	"circulation-service/tests/e2e"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type holdResponse struct {
	ID             string  `json:"id"`
	ItemID         string  `json:"itemId"`
	Status         string  `json:"status"`
	PickupDeadline *string `json:"pickupDeadline"`
	Comment        *string `json:"comment"`
}

type loanResponse struct {
	ID           string `json:"id"`
	HoldID       string `json:"holdId"`
	Status       string `json:"status"`
	DueDate      string `json:"dueDate"`
	Extensions   int    `json:"extensions"`
	LateFeeCents int64  `json:"lateFeeCents"`
}

type CirculationSuite struct {
	e2e.SharedSuite
}

func TestCirculationSuite(t *testing.T) {
	suite.Run(t, new(CirculationSuite))
}

func (s *CirculationSuite) patron() *commonhttp.Identity {
	id := dbtest.CreateTestUser(s.T(), s.DB, "patron@example.com", "patron", dbtest.CentralLibraryID)
	return &commonhttp.Identity{UserID: id, Role: "patron"}
}

func (s *CirculationSuite) librarian() *commonhttp.Identity {
	id := dbtest.CreateTestUser(s.T(), s.DB, "desk@example.com", "librarian", dbtest.CentralLibraryID)
	return &commonhttp.Identity{UserID: id, Role: "librarian"}
}

func (s *CirculationSuite) createHold(patron *commonhttp.Identity, itemID uuid.UUID) holdResponse {
	w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/holds",
		map[string]any{"item_id": itemID}, patron)
	var created holdResponse
	commonhttp.AssertSuccessResponse(s.T(), w, http.StatusCreated, &created)
	return created
}

func (s *CirculationSuite) TestHoldLifecycle() {
	s.Run("full lifecycle from request to feedback", func() {
		patron := s.patron()
		staff := s.librarian()
		itemID := dbtest.CreateTestItem(s.T(), s.DB, dbtest.CentralLibraryID, "Dune", nil, 1)

		created := s.createHold(patron, itemID)
		s.Equal("PENDING", created.Status)

		// The request shows up in the library's confirmation queue.
		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodGet,
			"/api/libraries/"+dbtest.CentralLibraryID.String()+"/holds/pending", nil, staff)
		var pending []holdResponse
		commonhttp.AssertSuccessResponse(s.T(), w, http.StatusOK, &pending)
		s.Len(pending, 1)

		w = commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost,
			"/api/holds/"+created.ID+"/confirm", map[string]any{"comment": "shelf B3"}, staff)
		var confirmed holdResponse
		commonhttp.AssertSuccessResponse(s.T(), w, http.StatusOK, &confirmed)
		s.Equal("CONFIRMED", confirmed.Status)
		s.NotNil(confirmed.PickupDeadline)
		s.NotNil(confirmed.Comment)

		w = commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost,
			"/api/holds/"+created.ID+"/start-borrowing", nil, staff)
		var started holdResponse
		commonhttp.AssertSuccessResponse(s.T(), w, http.StatusOK, &started)
		s.Equal("BORROWING_STARTED", started.Status)

		// The paired loan is live and visible to the borrower.
		w = commonhttp.PerformRequest(s.T(), s.Router, http.MethodGet, "/api/loans", nil, patron)
		var loans []loanResponse
		commonhttp.AssertSuccessResponse(s.T(), w, http.StatusOK, &loans)
		s.Require().Len(loans, 1)
		s.Equal("IN_PROGRESS", loans[0].Status)
		s.Equal(created.ID, loans[0].HoldID)

		w = commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost,
			"/api/loans/"+loans[0].ID+"/return", nil, staff)
		var returned loanResponse
		commonhttp.AssertSuccessResponse(s.T(), w, http.StatusOK, &returned)
		s.Equal("RETURNED", returned.Status)
		s.Zero(returned.LateFeeCents)

		w = commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost,
			"/api/loans/"+loans[0].ID+"/feedback", map[string]any{"text": "loved it", "rating": 5}, patron)
		var closed loanResponse
		commonhttp.AssertSuccessResponse(s.T(), w, http.StatusOK, &closed)
		s.Equal("CLOSED", closed.Status)
	})

	s.Run("duplicate request is rejected", func() {
		patron := s.patron()
		itemID := dbtest.CreateTestItem(s.T(), s.DB, dbtest.CentralLibraryID, "Dune", nil, 2)

		s.createHold(patron, itemID)
		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/holds",
			map[string]any{"item_id": itemID}, patron)
		commonhttp.AssertErrorResponse(s.T(), w, http.StatusConflict, "already exists")
	})

	s.Run("patrons cannot confirm holds", func() {
		patron := s.patron()
		itemID := dbtest.CreateTestItem(s.T(), s.DB, dbtest.CentralLibraryID, "Dune", nil, 1)
		created := s.createHold(patron, itemID)

		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost,
			"/api/holds/"+created.ID+"/confirm", nil, patron)
		commonhttp.AssertErrorResponse(s.T(), w, http.StatusForbidden, "not permitted")
	})

	s.Run("confirming with no copies left conflicts", func() {
		patron := s.patron()
		other := &commonhttp.Identity{
			UserID: dbtest.CreateTestUser(s.T(), s.DB, "second@example.com", "patron", dbtest.CentralLibraryID),
			Role:   "patron",
		}
		staff := s.librarian()
		itemID := dbtest.CreateTestItem(s.T(), s.DB, dbtest.CentralLibraryID, "Dune", nil, 1)

		first := s.createHold(patron, itemID)
		second := s.createHold(other, itemID)

		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost,
			"/api/holds/"+first.ID+"/confirm", nil, staff)
		commonhttp.AssertSuccessResponse(s.T(), w, http.StatusOK, nil)

		w = commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost,
			"/api/holds/"+second.ID+"/confirm", nil, staff)
		commonhttp.AssertErrorResponse(s.T(), w, http.StatusConflict, "No copy available")
	})

	s.Run("concurrent confirmations never oversell the last copy", func() {
		patronA := s.patron()
		patronB := &commonhttp.Identity{
			UserID: dbtest.CreateTestUser(s.T(), s.DB, "second@example.com", "patron", dbtest.CentralLibraryID),
			Role:   "patron",
		}
		staff := s.librarian()
		itemID := dbtest.CreateTestItem(s.T(), s.DB, dbtest.CentralLibraryID, "Dune", nil, 1)

		holdA := s.createHold(patronA, itemID)
		holdB := s.createHold(patronB, itemID)

		codes := make(chan int, 2)
		var wg sync.WaitGroup
		for _, holdID := range []string{holdA.ID, holdB.ID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost,
					"/api/holds/"+id+"/confirm", nil, staff)
				codes <- w.Code
			}(holdID)
		}
		wg.Wait()
		close(codes)

		got := map[int]int{}
		for code := range codes {
			got[code]++
		}
		s.Equal(1, got[http.StatusOK], "exactly one confirmation wins the last copy")
		s.Equal(1, got[http.StatusConflict], "the loser gets a conflict")

		var available int
		err := s.DB.QueryRow(context.Background(),
			"SELECT available_copies FROM catalog_items WHERE id = $1", itemID).Scan(&available)
		s.Require().NoError(err)
		s.Equal(0, available)
	})

	s.Run("requests without identity are unauthorized", func() {
		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodGet, "/api/holds", nil, nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *CirculationSuite) TestCatalog() {
	s.Run("staff registers a new item", func() {
		staff := s.librarian()

		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/items",
			map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn": "978-0-441-17271-9", "total_copies": 3}, staff)
		var item struct {
			ID              string `json:"id"`
			TotalCopies     int    `json:"totalCopies"`
			AvailableCopies int    `json:"availableCopies"`
		}
		commonhttp.AssertSuccessResponse(s.T(), w, http.StatusCreated, &item)
		s.Equal(3, item.TotalCopies)
		s.Equal(3, item.AvailableCopies)

		w = commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/items",
			map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn": "978-0-441-17271-9", "total_copies": 1}, staff)
		commonhttp.AssertErrorResponse(s.T(), w, http.StatusConflict, "already exists")
	})

	s.Run("patrons cannot register items", func() {
		patron := s.patron()
		w := commonhttp.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/items",
			map[string]any{"title": "Dune", "author": "Frank Herbert", "total_copies": 1}, patron)
		commonhttp.AssertErrorResponse(s.T(), w, http.StatusForbidden, "not permitted")
	})
}
