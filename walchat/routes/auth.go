package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"walchat/walchat/controllers"
	"walchat/walchat/types"

	"github.com/go-chi/chi/v5"
)

func AuthRoutes(ctrl *controllers.AuthController) chi.Router {
	r := chi.NewRouter()
	// POST /auth/connect : exchange a wallet address for a bearer token
	r.Post("/connect", func(w http.ResponseWriter, r *http.Request) {
		var req types.ConnectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		token, err := ctrl.Connect(r.Context(), req.Address)
		if err != nil {
			if errors.Is(err, controllers.ErrMissingAddress) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(types.ConnectResponse{Token: token})
	})
	return r
}
