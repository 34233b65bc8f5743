package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"circulation-service/internal/handler/api"
	"circulation-service/internal/handler/middleware"
	"circulation-service/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(
	engine *gin.Engine,
	cfg config.Config,
	holdHandler *api.HoldHandler,
	loanHandler *api.LoanHandler,
	catalogHandler *api.CatalogHandler,
	identity *middleware.IdentityMiddleware,
) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, holdHandler, loanHandler, catalogHandler, identity)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(nil, cfg.Log))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(
	engine *gin.Engine,
	holdHandler *api.HoldHandler,
	loanHandler *api.LoanHandler,
	catalogHandler *api.CatalogHandler,
	identity *middleware.IdentityMiddleware,
) {
	engine.GET("/health", healthCheck)

	apiGroup := engine.Group("/api")
	apiGroup.Use(identity.RequireIdentity())
	{
		holds := apiGroup.Group("/holds")
		{
			addRoutes(holds, []route{
				{Method: http.MethodPost, Path: "", Handler: holdHandler.CreateHold},
				{Method: http.MethodGet, Path: "", Handler: holdHandler.GetUserHolds},
				{Method: http.MethodGet, Path: "/:id", Handler: holdHandler.GetHold},
				{Method: http.MethodPost, Path: "/:id/confirm", Handler: holdHandler.ConfirmHold},
				{Method: http.MethodPost, Path: "/:id/reject", Handler: holdHandler.RejectHold},
				{Method: http.MethodPost, Path: "/:id/cancel", Handler: holdHandler.CancelHold},
				{Method: http.MethodPost, Path: "/:id/start-borrowing", Handler: holdHandler.StartBorrowing},
			})
		}

		loans := apiGroup.Group("/loans")
		{
			addRoutes(loans, []route{
				{Method: http.MethodGet, Path: "", Handler: loanHandler.GetUserLoans},
				{Method: http.MethodGet, Path: "/:id", Handler: loanHandler.GetLoan},
				{Method: http.MethodPost, Path: "/:id/return", Handler: loanHandler.ReturnLoan},
				{Method: http.MethodPost, Path: "/:id/close", Handler: loanHandler.CloseLoan},
				{Method: http.MethodPost, Path: "/:id/flag-not-returned", Handler: loanHandler.FlagNotReturned},
				{Method: http.MethodPost, Path: "/:id/extend", Handler: loanHandler.ExtendLoan},
				{Method: http.MethodPost, Path: "/:id/feedback", Handler: loanHandler.RecordFeedback},
			})
		}

		libraries := apiGroup.Group("/libraries")
		{
			addRoutes(libraries, []route{
				{Method: http.MethodGet, Path: "/:libraryId/holds/pending", Handler: holdHandler.GetPendingHolds},
				{Method: http.MethodGet, Path: "/:libraryId/loans/active", Handler: loanHandler.GetActiveLoans},
			})
		}

		items := apiGroup.Group("/items")
		{
			addRoutes(items, []route{
				{Method: http.MethodPost, Path: "", Handler: catalogHandler.CreateItem},
			})
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
