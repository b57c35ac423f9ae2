package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/obs"
)

// HTTPRecorder records mutating requests after they have been handled.
// Reads are not audited.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
	// IDParam names the route parameter holding the resource id; "id" when empty.
	IDParam string
}

// Middleware records one entry per POST, PUT, PATCH or DELETE request.
func (r HTTPRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.Service == nil || !r.Service.Enabled || !mutating(req.Method) {
			next.ServeHTTP(w, req)
			return
		}
		recorder := obs.NewStatusRecorder(w)
		next.ServeHTTP(recorder, req)

		param := r.IDParam
		if param == "" {
			param = "id"
		}
		err := r.Service.Record(req.Context(), actorOf(req), "", "", chi.URLParam(req, param), req, recorder.Status(), nil)
		if err != nil && r.OnError != nil {
			r.OnError(err)
		}
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func actorOf(req *http.Request) Actor {
	if subject, ok := common.UserID(req.Context()); ok && subject != "" {
		return Actor{Kind: ActorKindAdmin, Subject: subject}
	}
	return Actor{Kind: ActorKindAnonymous}
}
