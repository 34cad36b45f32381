package obfuscator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObfuscateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/obfuscate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req struct {
			Code  string `json:"code"`
			Level string `json:"level"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Level != "heavy" {
			t.Errorf("expected level heavy, got %q", req.Level)
		}

		json.NewEncoder(w).Encode(map[string]string{"code": "-- protected\n" + req.Code})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	out, err := client.Obfuscate(context.Background(), "print('hi')", "heavy")
	if err != nil {
		t.Fatalf("obfuscate: %v", err)
	}
	if out != "-- protected\nprint('hi')" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestObfuscateNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Obfuscate(context.Background(), "print('hi')", "light")
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("error must name the status, got %v", err)
	}
}

func TestObfuscateEngineReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "parse failure at line 3"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Obfuscate(context.Background(), "print('hi'", "light")
	if err == nil {
		t.Fatal("expected engine-reported error")
	}
	if !strings.Contains(err.Error(), "parse failure at line 3") {
		t.Fatalf("error must carry the engine message, got %v", err)
	}
}

func TestObfuscateEmptyOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"code": ""})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if _, err := client.Obfuscate(context.Background(), "print('hi')", "light"); err == nil {
		t.Fatal("empty engine output must be an error")
	}
}

func TestObfuscateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond)
	if _, err := client.Obfuscate(context.Background(), "print('hi')", "light"); err == nil {
		t.Fatal("expected timeout error")
	}
}
