package notify

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"k8s.io/klog/v2"
)

// Sender is what the HTTP surface needs from the service.
type Sender interface {
	Send(ctx context.Context, to, message string) (Result, error)
	Status() Status
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Provider  string `json:"provider"`
}

type statusResponse struct {
	Status       string   `json:"status"`
	Configured   bool     `json:"configured"`
	Providers    []string `json:"providers"`
	FallbackOnly bool     `json:"fallbackOnly"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter returns the HTTP surface of the notification service:
//
//	POST /api/send-sms {to, message} -> {success, messageId, provider}
//	GET  /api/send-sms               -> {status, configured, providers, fallbackOnly}
func NewRouter(s Sender) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(jsonContentType)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Route("/api/send-sms", func(r chi.Router) {
		r.Post("/", handleSend(s))
		r.Get("/", handleStatus(s))
	})
	return r
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Errorf("writeJSON: %v", err)
	}
}

func handleSend(s Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Faltan parámetros requeridos: to, message"})
			return
		}
		if req.To == "" || req.Message == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Faltan parámetros requeridos: to, message"})
			return
		}
		res, err := s.Send(r.Context(), req.To, req.Message)
		if err != nil {
			klog.Errorf("handleSend: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sendResponse{Success: true, MessageID: res.MessageID, Provider: res.Provider})
	}
}

func handleStatus(s Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := s.Status()
		writeJSON(w, http.StatusOK, statusResponse{
			Status:       "active",
			Configured:   st.Configured,
			Providers:    st.Providers,
			FallbackOnly: st.FallbackOnly,
		})
	}
}

// Run serves the notification HTTP surface on addr until ctx is canceled. If addr is empty
// a free port on localhost is used. The address actually listened on is sent to started,
// if not nil.
func Run(ctx context.Context, addr string, s Sender, started chan<- string) error {
	if addr == "" {
		addr = "localhost:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: NewRouter(s)}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Notification server started on %s", listener.Addr())
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	if started != nil {
		started <- listener.Addr().String()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown with 5 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	klog.Infof("Shutting down notification server...")
	return srv.Shutdown(shutdownCtx)
}
