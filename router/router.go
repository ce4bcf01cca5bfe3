package router

import (
	"net/http"

	_ "bookstore-api/docs"
	"bookstore-api/handler"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(authHandler *handler.AuthHandler, userHandler *handler.UserHandler, authMw *handler.AuthMiddleware) http.Handler {
	mux := http.NewServeMux()

	// Public endpoints.
	mux.Handle("POST /register", handler.ErrorHandlingMiddleware(authHandler.Register))
	mux.Handle("POST /login", handler.ErrorHandlingMiddleware(authHandler.Login))
	mux.Handle("POST /refresh", handler.ErrorHandlingMiddleware(authHandler.Refresh))
	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Catalog-style public routes would mount authMw.Optional to resolve an
	// identity without requiring one; none exist yet.

	// Authenticated endpoints.
	mux.Handle("POST /logout", authMw.Authenticate(handler.ErrorHandlingMiddleware(authHandler.Logout)))
	mux.Handle("GET /me", authMw.Authenticate(handler.ErrorHandlingMiddleware(userHandler.Me)))
	mux.Handle("PUT /me", authMw.Authenticate(handler.ErrorHandlingMiddleware(userHandler.UpdateMe)))

	// Admin endpoints.
	mux.Handle("GET /users", authMw.Authenticate(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(userHandler.GetAllUsers))))
	mux.Handle("GET /users/{id}", authMw.Authenticate(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(userHandler.GetUserByID))))
	mux.Handle("PUT /users/{id}/role", authMw.Authenticate(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(userHandler.UpdateUserRole))))
	mux.Handle("DELETE /users/{id}", authMw.Authenticate(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(userHandler.DeleteUser))))

	return mux
}
