package signedhttp

import (
	"errors"
	"io"
	"net/http"
)

// maxBodyBytes caps inbound request bodies read by the middleware.
const maxBodyBytes = 4 << 20

// Handler processes an authenticated request and returns the response status
// and body. The middleware signs and persists the response.
type Handler func(r *http.Request, session *InboundSession, body []byte) (int, []byte)

// Middleware wraps a Handler with full request authentication, replay
// arbitration and response signing. Stored responses are returned bit-exact;
// in-flight and conflicting nonces get signed 409 responses; verification
// failures get unsigned errors with the kind in the body.
func (r *Responder) Middleware(next Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		meta := RequestMeta{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.RawQuery,
		}

		decision, err := r.AuthenticateInvoke(
			req.Context(),
			meta,
			body,
			req.Header.Get(HeaderSigVersion),
			req.Header.Get(HeaderSigInput),
			req.Header.Get(HeaderSig),
		)
		if err != nil {
			writeVerifyError(w, err)
			return
		}

		switch decision.Kind {
		case DecisionReturn:
			writeStored(w, decision.Stored)

		case DecisionRejectInFlight:
			r.finishAndWrite(w, req, decision.Session, http.StatusConflict,
				[]byte(`{"error":"request in flight"}`))

		case DecisionRejectConflict:
			r.finishAndWrite(w, req, decision.Session, http.StatusConflict,
				[]byte(`{"error":"nonce conflict"}`))

		case DecisionProceed:
			session := decision.Session
			defer session.Close(req.Context())
			status, respBody := next(req, session, body)
			r.finishAndWrite(w, req, session, status, respBody)
		}
	})
}

func (r *Responder) finishAndWrite(w http.ResponseWriter, req *http.Request, session *InboundSession, status int, body []byte) {
	resp, err := session.Finish(req.Context(), status, body)
	if err != nil {
		r.log.Error("sign response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeStored(w, resp)
}

func writeStored(w http.ResponseWriter, resp *StoredResponse) {
	for name, values := range resp.ResponseHeaders() {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

func writeVerifyError(w http.ResponseWriter, err error) {
	var verr *Error
	if errors.As(err, &verr) {
		status := http.StatusUnauthorized
		switch verr.Kind {
		case KindMissingHeader, KindUnsupportedVersion, KindInvalidBase64,
			KindInvalidSignatureLen, KindInvalidSignedInput:
			status = http.StatusBadRequest
		}
		http.Error(w, string(verr.Kind), status)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}
