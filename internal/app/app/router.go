package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fintech/internal/app/handler"
	mw "fintech/internal/app/middleware"
)

func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(a.logger))

	auth := mw.Auth(a.session)

	uh := handler.NewUserHandler(a.accounts, a.session)
	th := handler.NewTransactionHandler(a.accounts, a.transfers, a.history)

	r.Get("/health", handler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", uh.Register)
		r.Post("/login", uh.Login)
		r.Get("/balance/{userId}", th.Balance)
		r.Post("/transfer", th.Transfer)
		r.Get("/transactions/{userId}", th.List)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Get("/me", uh.Me)
			r.Post("/me/password", uh.ChangePassword)
			r.Post("/me/pin", uh.SetPIN)
			r.Post("/logout", uh.Logout)
		})
	})

	return r
}
