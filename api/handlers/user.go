package handlers

import (
	"net/http"
	"strconv"

	"github.com/linesmerrill/primecare-chat/api"
	"github.com/linesmerrill/primecare-chat/config"
	"github.com/linesmerrill/primecare-chat/databases"
	"github.com/linesmerrill/primecare-chat/models"
)

// User exposes the user directory
type User struct {
	DB databases.UserDatabase
}

// PatientsHandler returns one page of patients. Query params: limit, page.
func (u User) PatientsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	patients, err := u.DB.Patients(ctx, limit, page)
	if err != nil {
		config.ErrorStatus("failed to get patients", http.StatusInternalServerError, w, err)
		return
	}
	// the clients iterate the result, so never send null
	if patients == nil {
		patients = []models.User{}
	}
	writeJSON(w, http.StatusOK, patients)
}
