package settings

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/backend-booking/internal/common"
)

// Handler exposes the admin settings endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler constructs a Handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type stripeView struct {
	Enabled          bool    `json:"enabled"`
	PublishableKey   string  `json:"publishable_key"`
	SecretKeySet     bool    `json:"secret_key_set"`
	SecretKeyHint    string  `json:"secret_key_hint,omitempty"`
	WebhookSecretSet bool    `json:"webhook_secret_set"`
	Sandbox          bool    `json:"sandbox"`
	CorrectionKind   string  `json:"price_correction_kind"`
	CorrectionAmount float64 `json:"price_correction_amount"`
}

// Get handles GET /api/v1/admin/settings. Secrets are never returned.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.repo.LoadStripe(ctx)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	general, err := h.repo.LoadGeneral(ctx)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	pages, err := h.repo.LoadPages(ctx)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	secret := h.repo.Cipher.Decrypt(st.SecretKey)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"stripe": stripeView{
			Enabled:          st.Enabled,
			PublishableKey:   st.PublishableKey,
			SecretKeySet:     secret != "",
			SecretKeyHint:    Mask(secret),
			WebhookSecretSet: h.repo.Cipher.Decrypt(st.WebhookSecret) != "",
			Sandbox:          st.Sandbox,
			CorrectionKind:   string(st.PriceCorrection.Kind),
			CorrectionAmount: st.PriceCorrection.Amount,
		},
		"general": general,
		"pages":   pages,
	}})
}

// PutStripe handles PUT /api/v1/admin/settings/stripe.
func (h *Handler) PutStripe(w http.ResponseWriter, r *http.Request) {
	var in StripeInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.repo.SaveStripe(r.Context(), in); err != nil {
		common.WriteError(w, err)
		return
	}
	h.Get(w, r)
}

// PutGeneral handles PUT /api/v1/admin/settings/general.
func (h *Handler) PutGeneral(w http.ResponseWriter, r *http.Request) {
	var in GeneralInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.repo.SaveGeneral(r.Context(), in); err != nil {
		common.WriteError(w, err)
		return
	}
	h.Get(w, r)
}

// PutPages handles PUT /api/v1/admin/settings/pages.
func (h *Handler) PutPages(w http.ResponseWriter, r *http.Request) {
	var in PagesInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.repo.SavePages(r.Context(), in); err != nil {
		common.WriteError(w, err)
		return
	}
	h.Get(w, r)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return false
	}
	return true
}
