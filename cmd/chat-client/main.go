package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"libraryconnect.chat/internal/client"
	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/tui"
	"libraryconnect.chat/pkg/jwt"
)

func main() {
	_ = godotenv.Load()

	profilePath := flag.String("profile", defaultProfilePath(), "profile file")
	server := flag.String("server", "", "chat server base URL (default from profile or CHAT_SERVER)")
	email := flag.String("email", "", "account email")
	register := flag.String("register", "", "create an account with this display name before logging in")
	noPush := flag.Bool("no-push", false, "poll only, do not open the websocket stream")
	flag.Parse()

	if err := run(*profilePath, *server, *email, *register, *noPush); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(profilePath, server, email, register string, noPush bool) error {
	profile, err := loadProfile(profilePath)
	if err != nil {
		return err
	}
	if server != "" {
		profile.Server = server
	}
	if profile.Server == "" {
		profile.Server = os.Getenv("CHAT_SERVER")
	}
	if profile.Server == "" {
		profile.Server = "http://localhost:8080"
	}
	if email != "" && email != profile.Email {
		profile.Email = email
		profile.AccessToken, profile.RefreshToken = "", ""
	}
	if noPush {
		profile.Push = false
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if register != "" {
		if err := registerAccount(ctx, profile, register); err != nil {
			return err
		}
	}

	// renewed pairs arrive from poller goroutines while the TUI owns the terminal,
	// so a failed save is dropped silently; the next sign-in falls back to a password
	var saveMu sync.Mutex
	persist := func(pair jwt.TokenPair) {
		saveMu.Lock()
		defer saveMu.Unlock()
		profile.AccessToken, profile.RefreshToken = pair.AccessToken, pair.RefreshToken
		_ = saveProfile(profilePath, profile)
	}
	api := client.New(profile.Server,
		client.WithToken(profile.AccessToken),
		client.WithRefreshToken(profile.RefreshToken, persist),
	)

	me, err := signIn(ctx, api, profile)
	if err != nil {
		return err
	}
	saveMu.Lock()
	err = saveProfile(profilePath, profile)
	saveMu.Unlock()
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not save profile:", err)
	}

	m := tui.New(ctx, api, me.Summary(), tui.Options{Push: profile.Push})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// registerAccount creates the account on an unauthenticated client and forgets any
// saved session, so the login that follows is for the new account.
func registerAccount(ctx context.Context, profile *Profile, name string) error {
	if profile.Email == "" {
		e, err := prompt("email: ", false)
		if err != nil {
			return err
		}
		profile.Email = e
	}
	password, err := prompt("password: ", true)
	if err != nil {
		return err
	}
	params := client.RegisterParams{Name: name, Email: profile.Email, Password: password}
	if _, err := client.New(profile.Server).Register(ctx, params); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	profile.AccessToken, profile.RefreshToken = "", ""
	return nil
}

// signIn reuses the saved access token, then the refresh token, then asks for a password.
func signIn(ctx context.Context, api *client.Client, profile *Profile) (*model.User, error) {
	if profile.AccessToken != "" {
		me, err := api.Me(ctx)
		if err == nil {
			return me, nil
		}
		if !client.IsStatus(err, http.StatusUnauthorized) {
			return nil, err
		}
	}

	if profile.RefreshToken != "" {
		if pair, err := api.Refresh(ctx, profile.RefreshToken); err == nil {
			profile.AccessToken, profile.RefreshToken = pair.AccessToken, pair.RefreshToken
			return api.Me(ctx)
		}
	}

	if profile.Email == "" {
		e, err := prompt("email: ", false)
		if err != nil {
			return nil, err
		}
		profile.Email = e
	}
	password, err := prompt("password: ", true)
	if err != nil {
		return nil, err
	}
	session, err := api.Login(ctx, profile.Email, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	profile.AccessToken, profile.RefreshToken = session.Token.AccessToken, session.Token.RefreshToken
	return &session.User, nil
}

// stdin is shared between prompts so piped input is not lost to read-ahead.
var (
	stdin      = bufio.NewReader(os.Stdin)
	isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

func prompt(label string, secret bool) (string, error) {
	fmt.Fprint(os.Stderr, label)
	if secret && isTerminal() {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no input")
	}
	return line, nil
}
