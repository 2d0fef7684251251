package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultCallbackAddr is where the loopback authorization flow listens.
const DefaultCallbackAddr = "localhost:8085"

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body>
<h1>Authorization Successful</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>
`

// LocalServerFlow runs the OAuth authorization code flow with a loopback
// HTTP server receiving the callback.
type LocalServerFlow struct {
	// Addr is the listen address, DefaultCallbackAddr when empty.
	Addr string

	// Open is called with the consent URL. It usually starts a browser.
	Open func(url string) error

	// Timeout bounds the wait for the callback, 5 minutes when zero.
	Timeout time.Duration
}

// Run obtains a token for conf. The config's RedirectURL is set to the
// callback of the loopback server.
func (f *LocalServerFlow) Run(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	addr := f.Addr
	if addr == "" {
		addr = DefaultCallbackAddr
	}
	timeout := f.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	state, err := randomState()
	if err != nil {
		ln.Close()
		return nil, err
	}

	cfg := *conf
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "Authorization failed: state mismatch", http.StatusBadRequest)
			sendErr(errCh, errors.New("authorization failed: state mismatch"))
			return
		}
		code := q.Get("code")
		if code == "" {
			msg := q.Get("error")
			http.Error(w, "Authorization failed: "+msg, http.StatusBadRequest)
			sendErr(errCh, fmt.Errorf("authorization failed: %s", msg))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, callbackPage)
		select {
		case codeCh <- code:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendErr(errCh, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if f.Open != nil {
		if err := f.Open(authURL); err != nil {
			return nil, fmt.Errorf("failed to open consent page: %w", err)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-timer.C:
		return nil, errors.New("timed out waiting for authorization")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return tok, nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
