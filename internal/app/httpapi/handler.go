// Package httpapi exposes the marketplace services over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/Gogul11/oriyam/internal/app"
	"github.com/Gogul11/oriyam/internal/app/domain/land"
	"github.com/Gogul11/oriyam/internal/app/metrics"
	"github.com/Gogul11/oriyam/internal/app/services"
	"github.com/Gogul11/oriyam/internal/app/services/interests"
	"github.com/Gogul11/oriyam/internal/app/services/lands"
	"github.com/Gogul11/oriyam/internal/app/services/leases"
	"github.com/Gogul11/oriyam/internal/app/services/users"
	"github.com/Gogul11/oriyam/internal/app/storage"
)

const maxUploadBytes = 32 << 20

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the REST API. Routes under
// authentication require a bearer token; /admin routes additionally require
// the admin role claim.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/forgot-password/request-otp", h.forgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/auth/forgot-password/verify-otp", h.verifyOTP).Methods(http.MethodPost)
	r.HandleFunc("/auth/forgot-password/reset", h.resetPassword).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(RequireAuth(application.Issuer))

	authed.HandleFunc("/profile", h.profile).Methods(http.MethodGet)
	authed.HandleFunc("/profile", h.updateProfile).Methods(http.MethodPut)

	authed.HandleFunc("/lands", h.browseLands).Methods(http.MethodGet)
	authed.HandleFunc("/lands", h.addLand).Methods(http.MethodPost)
	authed.HandleFunc("/lands/mine", h.myLands).Methods(http.MethodGet)
	authed.HandleFunc("/lands/{id}", h.getLand).Methods(http.MethodGet)
	authed.HandleFunc("/lands/{id}", h.updateLand).Methods(http.MethodPut)
	authed.HandleFunc("/lands/{id}/interests", h.expressInterest).Methods(http.MethodPost)
	authed.HandleFunc("/lands/{id}/interests", h.landInterests).Methods(http.MethodGet)
	authed.HandleFunc("/interests", h.myInterests).Methods(http.MethodGet)

	authed.HandleFunc("/leases", h.initiateLease).Methods(http.MethodPost)
	authed.HandleFunc("/leases", h.listLeases).Methods(http.MethodGet)
	authed.HandleFunc("/leases/{id}", h.getLease).Methods(http.MethodGet)
	authed.HandleFunc("/leases/{id}/deposit", h.payDeposit).Methods(http.MethodPost)
	authed.HandleFunc("/leases/{id}/payments", h.payMonth).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(RequireAuth(application.Issuer), RequireAdmin)
	admin.HandleFunc("/users", h.adminUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", h.adminUser).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/lands", h.adminUserLands).Methods(http.MethodGet)
	admin.HandleFunc("/lands", h.adminLands).Methods(http.MethodGet)
	admin.HandleFunc("/lands/{id}", h.adminLand).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.app.Health != nil {
		if err := h.app.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Auth ------------------------------------------------------------------------

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username         string `json:"username"`
		Email            string `json:"email"`
		Mobile           string `json:"mobile"`
		Password         string `json:"password"`
		Age              int    `json:"age"`
		GovernmentID     string `json:"government_id"`
		GovernmentIDType string `json:"government_id_type"`
		DateOfBirth      string `json:"date_of_birth"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Users.Register(r.Context(), users.RegisterInput{
		Username:         payload.Username,
		Email:            payload.Email,
		Mobile:           payload.Mobile,
		Password:         payload.Password,
		Age:              payload.Age,
		GovernmentID:     payload.GovernmentID,
		GovernmentIDType: payload.GovernmentIDType,
		DateOfBirth:      payload.DateOfBirth,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created.PublicProfile())
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, token, err := h.app.Users.Login(r.Context(), payload.Mobile, payload.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u.PublicProfile(),
	})
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Users.ForgotPassword(r.Context(), payload.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	metrics.RecordOTPIssued()
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

func (h *handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Users.VerifyOTP(r.Context(), payload.Email, payload.OTP); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP verified"})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Users.ResetPassword(r.Context(), payload.Email, payload.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Profile ---------------------------------------------------------------------

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.app.Users.Profile(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Mobile   string `json:"mobile"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	profile, err := h.app.Users.UpdateProfile(r.Context(), UserID(r.Context()), payload.Username, payload.Email, payload.Mobile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Lands -----------------------------------------------------------------------

type landResponse struct {
	land.Land
	PhotoURLs []string `json:"photo_urls"`
}

func (h *handler) landResponse(l land.Land) landResponse {
	return landResponse{Land: l, PhotoURLs: h.app.Lands.PhotoURLs(l)}
}

func (h *handler) landResponses(list []land.Land) []landResponse {
	out := make([]landResponse, 0, len(list))
	for _, l := range list {
		out = append(out, h.landResponse(l))
	}
	return out
}

func (h *handler) browseLands(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Lands.Browse(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.landResponses(list))
}

func (h *handler) myLands(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Lands.Mine(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.landResponses(list))
}

func (h *handler) getLand(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Lands.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.landResponse(l))
}

func (h *handler) addLand(w http.ResponseWriter, r *http.Request) {
	in, err := decodeLandInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Lands.Add(r.Context(), UserID(r.Context()), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.landResponse(created))
}

func (h *handler) updateLand(w http.ResponseWriter, r *http.Request) {
	in, err := decodeLandInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Lands.Update(r.Context(), UserID(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.landResponse(updated))
}

type landPayload struct {
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Area          float64      `json:"area"`
	AreaUnit      string       `json:"area_unit"`
	MonthlyRent   float64      `json:"monthly_rent"`
	SoilType      string       `json:"soil_type"`
	WaterSource   string       `json:"water_source"`
	AvailableFrom string       `json:"available_from"`
	AvailableTo   string       `json:"available_to"`
	Coordinates   []land.Point `json:"coordinates"`
}

func (p landPayload) input() lands.Input {
	return lands.Input{
		Title:         p.Title,
		Description:   p.Description,
		Area:          p.Area,
		AreaUnit:      p.AreaUnit,
		MonthlyRent:   p.MonthlyRent,
		SoilType:      p.SoilType,
		WaterSource:   p.WaterSource,
		AvailableFrom: p.AvailableFrom,
		AvailableTo:   p.AvailableTo,
		Coordinates:   p.Coordinates,
	}
}

// decodeLandInput accepts either JSON or multipart form data. Multipart
// requests carry the listing fields in a "land" part and photos in "photos"
// file parts.
func decodeLandInput(r *http.Request) (lands.Input, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var payload landPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			return lands.Input{}, err
		}
		return payload.input(), nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return lands.Input{}, fmt.Errorf("parse multipart form: %w", err)
	}

	var payload landPayload
	if raw := r.FormValue("land"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return lands.Input{}, fmt.Errorf("parse land payload: %w", err)
		}
	}
	in := payload.input()

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["photos"] {
			f, err := header.Open()
			if err != nil {
				return lands.Input{}, fmt.Errorf("open photo %s: %w", header.Filename, err)
			}
			defer f.Close()
			in.Photos = append(in.Photos, lands.PhotoUpload{Filename: header.Filename, Data: f})
		}
	}
	return in, nil
}

// Interests -------------------------------------------------------------------

func (h *handler) expressInterest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MonthlyBudget    float64 `json:"monthly_budget"`
		RentPeriodMonths int     `json:"rent_period_months"`
		Reason           string  `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Interests.Express(r.Context(), UserID(r.Context()), mux.Vars(r)["id"],
		payload.MonthlyBudget, payload.RentPeriodMonths, payload.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) landInterests(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Interests.ForLand(r.Context(), UserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) myInterests(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Interests.Mine(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Leases ----------------------------------------------------------------------

func (h *handler) initiateLease(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		LandID      string  `json:"land_id"`
		BuyerID     string  `json:"buyer_id"`
		Deposit     float64 `json:"deposit"`
		MonthlyDue  float64 `json:"monthly_due"`
		TotalMonths int     `json:"total_months"`
		StartDate   string  `json:"start_date"`
		EndDate     string  `json:"end_date"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Leases.Initiate(r.Context(), UserID(r.Context()), leases.Input{
		LandID:      payload.LandID,
		BuyerID:     payload.BuyerID,
		Deposit:     payload.Deposit,
		MonthlyDue:  payload.MonthlyDue,
		TotalMonths: payload.TotalMonths,
		StartDate:   payload.StartDate,
		EndDate:     payload.EndDate,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	metrics.RecordLeaseTransition("initiated")
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listLeases(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	switch role := r.URL.Query().Get("role"); role {
	case "buyer":
		list, err := h.app.Leases.AsBuyer(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case "seller":
		list, err := h.app.Leases.AsSeller(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("role query parameter must be buyer or seller"))
	}
}

func (h *handler) getLease(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Leases.Get(r.Context(), UserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) payDeposit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount float64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Leases.PayDeposit(r.Context(), UserID(r.Context()), mux.Vars(r)["id"], payload.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	metrics.RecordLeaseTransition("active")
	metrics.RecordLeasePayment("deposit")
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) payMonth(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Month  int     `json:"month"`
		Amount float64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Leases.PayMonth(r.Context(), UserID(r.Context()), mux.Vars(r)["id"], payload.Month, payload.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	metrics.RecordLeasePayment("month")
	if updated.Status == "completed" {
		metrics.RecordLeaseTransition("completed")
	}
	writeJSON(w, http.StatusOK, updated)
}

// Admin -----------------------------------------------------------------------

func (h *handler) adminUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Users.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) adminUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) adminUserLands(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Lands.Mine(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.landResponses(list))
}

func (h *handler) adminLands(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Lands.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.landResponses(list))
}

func (h *handler) adminLand(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Lands.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.landResponse(l))
}

// Helpers ---------------------------------------------------------------------

func decodeJSON(body io.Reader, dst interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var invalid *services.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrVersionMismatch):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, users.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, lands.ErrNotOwner),
		errors.Is(err, interests.ErrNotOwner),
		errors.Is(err, interests.ErrOwnLand),
		errors.Is(err, leases.ErrNotSeller),
		errors.Is(err, leases.ErrNotBuyer),
		errors.Is(err, leases.ErrNotParty):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, interests.ErrLandUnavailable),
		errors.Is(err, leases.ErrLandUnavailable),
		errors.Is(err, leases.ErrWrongState),
		errors.Is(err, leases.ErrWrongMonth):
		writeError(w, http.StatusConflict, err)
	case errors.As(err, &invalid),
		errors.Is(err, leases.ErrAmountMismatch),
		errors.Is(err, leases.ErrNoInterest),
		errors.Is(err, users.ErrInvalidOTP),
		errors.Is(err, users.ErrOTPExpired),
		errors.Is(err, users.ErrOTPNotVerified):
		writeError(w, http.StatusBadRequest, err)
	default:
		// Anything unrecognized is a backing-store or upstream failure.
		// Its text stays out of the response.
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
