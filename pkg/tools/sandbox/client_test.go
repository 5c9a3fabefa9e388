package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Execute(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErr    bool
		wantStdout string
		wantFiles  int
	}{
		{
			name: "successful execution",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(ExecuteResponse{Status: "success", Stdout: "42\n"})
			},
			wantStdout: "42\n",
		},
		{
			name: "files under files_produced",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(ExecuteResponse{
					Status:        "success",
					FilesProduced: map[string]string{"result.csv": "YSxiCjEsMg=="},
				})
			},
			wantFiles: 1,
		},
		{
			name: "files under files",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"success","files":{"plot.png":"iVBO","data.csv":"YQ=="}}`))
			},
			wantFiles: 2,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal error"}`))
			},
			wantErr: true,
		},
		{
			name: "invalid JSON response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{invalid json`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			resp, err := NewClient(0).Execute(context.Background(), srv.URL, &ExecuteRequest{Code: "print(42)"})
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Stdout != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", resp.Stdout, tt.wantStdout)
			}
			if got := len(resp.ProducedFiles()); got != tt.wantFiles {
				t.Errorf("files = %d, want %d", got, tt.wantFiles)
			}
		})
	}
}

func TestClient_Execute_RequestShape(t *testing.T) {
	var got ExecuteRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	_, err := NewClient(0).Execute(context.Background(), srv.URL+"/", &ExecuteRequest{
		Code:           "import pandas",
		TimeoutSeconds: 30,
		Libraries:      []string{"pandas"},
		Files:          map[string]string{"in.csv": "YQ=="},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/execute" {
		t.Errorf("path = %q, want /execute", path)
	}
	if got.Code != "import pandas" || got.TimeoutSeconds != 30 {
		t.Errorf("request = %+v", got)
	}
	if len(got.Libraries) != 1 || got.Libraries[0] != "pandas" {
		t.Errorf("libraries = %v", got.Libraries)
	}
	if got.Files["in.csv"] != "YQ==" {
		t.Errorf("files = %v", got.Files)
	}
}

func TestClient_Execute_AtCapacity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(0).Execute(context.Background(), srv.URL, &ExecuteRequest{Code: "1"})
	if !errors.Is(err, ErrAtCapacity) {
		t.Errorf("err = %v, want ErrAtCapacity", err)
	}
}

func TestClient_Execute_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := NewClient(0).Execute(ctx, srv.URL, &ExecuteRequest{Code: "1"}); err == nil {
		t.Error("expected error for context timeout, got nil")
	}
}

func TestClient_Execute_Unreachable(t *testing.T) {
	if _, err := NewClient(time.Second).Execute(context.Background(), "http://localhost:1", &ExecuteRequest{Code: "1"}); err == nil {
		t.Error("expected error for unreachable server, got nil")
	}
}
