package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// StartCallbackServer runs a local HTTP server until the OAuth redirect
// delivers an authorization code, the flow fails, or ctx is done.
func StartCallbackServer(ctx context.Context, expectedState string) (string, error) {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth-callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		oauthState := q.Get("state")
		code := q.Get("code")
		errStr := q.Get("error")

		if oauthState != expectedState {
			http.Error(w, "Invalid state", http.StatusBadRequest)
			errChan <- fmt.Errorf("invalid state received")
			return
		}

		if errStr != "" {
			http.Error(w, "Auth failed: "+errStr, http.StatusBadRequest)
			errChan <- fmt.Errorf("auth failed: %s", errStr)
			return
		}

		if code == "" {
			http.Error(w, "No code received", http.StatusBadRequest)
			errChan <- fmt.Errorf("no code received")
			return
		}

		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
			<head><title>Success</title></head>
			<body style="font-family: sans-serif; text-align: center; padding: 50px;">
				<h1>Authentication Successful</h1>
				<p>You can close this tab and return to the terminal.</p>
			</body>
			</html>
		`))

		codeChan <- code
	})

	server := &http.Server{Addr: CallbackPort, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case code := <-codeChan:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		return code, nil
	case err := <-errChan:
		server.Close()
		return "", err
	case <-ctx.Done():
		server.Close()
		return "", ctx.Err()
	}
}
