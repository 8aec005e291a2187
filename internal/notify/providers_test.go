package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTwilio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/AC123/Messages.json" {
			t.Errorf("path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("basic auth: %q %q %v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.PostForm.Get("To") != "+573001112233" || r.PostForm.Get("From") != "+15550001111" || r.PostForm.Get("Body") != "hola" {
			t.Errorf("form: %v", r.PostForm)
		}
		w.Write([]byte(`{"sid":"SM42"}`))
	}))
	defer srv.Close()

	p := NewTwilio(TwilioConfig{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15550001111", APIURL: srv.URL})
	res, err := p.Send(context.Background(), "+573001112233", "hola")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res != (Result{Provider: "twilio", MessageID: "SM42"}) {
		t.Errorf("result: %+v", res)
	}

	_, err = NewTwilio(TwilioConfig{AccountSID: "AC123"}).Send(context.Background(), "+1", "x")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("incomplete Twilio config: got %v", err)
	}
}

func TestVonage(t *testing.T) {
	status := "0"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if body["to"] != "573001112233" || body["from"] != "MJAPPGAME" || body["api_key"] != "k" {
			t.Errorf("body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"status": status, "message-id": "V1", "error-text": "Throttled"}},
		})
	}))
	defer srv.Close()

	p := NewVonage(VonageConfig{APIKey: "k", APISecret: "s", APIURL: srv.URL})
	res, err := p.Send(context.Background(), "+573001112233", "hola")
	if err != nil || res.MessageID != "V1" {
		t.Fatalf("Send: %+v, %v", res, err)
	}
	status = "1"
	if _, err := p.Send(context.Background(), "+573001112233", "hola"); err == nil {
		t.Error("Vonage status 1 should fail")
	}
}

func TestGenericAndWhatsApp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sms":
			if r.Header.Get("Authorization") != "Bearer key" || r.Header.Get("X-API-Secret") != "sec" {
				t.Errorf("generic headers: %v", r.Header)
			}
			w.Write([]byte(`{"id":1234}`))
		case "/wa":
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("whatsapp headers: %v", r.Header)
			}
			w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := NewGeneric(GenericConfig{APIURL: srv.URL + "/sms", APIKey: "key", APISecret: "sec"}).
		Send(context.Background(), "+1", "hola")
	if err != nil || res != (Result{Provider: "generic", MessageID: "1234"}) {
		t.Errorf("generic: %+v, %v", res, err)
	}
	res, err = NewWhatsApp(WhatsAppConfig{APIURL: srv.URL + "/wa", APIToken: "tok"}).
		Send(context.Background(), "+1", "hola")
	if err != nil || res != (Result{Provider: "whatsapp", MessageID: "wamid.1"}) {
		t.Errorf("whatsapp: %+v, %v", res, err)
	}
	_, err = NewWhatsApp(WhatsAppConfig{APIURL: srv.URL + "/missing", APIToken: "tok"}).
		Send(context.Background(), "+1", "hola")
	if err == nil {
		t.Error("404 should fail")
	}
}
