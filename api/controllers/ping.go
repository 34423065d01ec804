package controllers

import (
	"net/http"

	"github.com/akbarsho/storefront-backend/api/middleware"
	"github.com/akbarsho/storefront-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if user, ok := middleware.UserFromContext(r.Context()); ok {
			payload["user_id"] = user.ID
		}
		responses.WriteSuccess(w, payload)
	}
}
