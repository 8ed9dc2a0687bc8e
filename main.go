package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anchorwatch/battleship-server/channel"
	"github.com/anchorwatch/battleship-server/chat"
	"github.com/anchorwatch/battleship-server/config"
	"github.com/anchorwatch/battleship-server/game"
	"github.com/anchorwatch/battleship-server/invite"
	"github.com/anchorwatch/battleship-server/match"
	"github.com/anchorwatch/battleship-server/presence"
	"github.com/anchorwatch/battleship-server/session"
	"github.com/anchorwatch/battleship-server/store"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting Battleship server on port %s", cfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis unreachable at %s: %v", cfg.RedisAddr, err)
	}

	ks := store.NewRedisStore(rdb)

	hub := session.NewHub(
		channel.NewLayer(),
		game.NewEngine(),
		presence.New(ks),
		invite.New(ks),
		chat.New(ks),
		match.New(ks),
		headerAuthenticator,
		cfg.AllowedOrigins,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/lobby/", hub.HandleLobby)
	mux.HandleFunc("/ws/game/", func(w http.ResponseWriter, r *http.Request) {
		gameID := strings.TrimPrefix(r.URL.Path, "/ws/game/")
		gameID = strings.Trim(gameID, "/")
		if gameID == "" {
			http.NotFound(w, r)
			return
		}
		hub.HandleGame(w, r, gameID)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Server running at http://localhost:%s", cfg.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Shutting down server (signal: %v)...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	os.Exit(0)
}

// headerAuthenticator trusts an upstream reverse proxy (or a test
// client) to set X-Username after handling real login. Session cookie
// and CSRF validation belong to that upstream layer, not here.
func headerAuthenticator(r *http.Request) (string, bool) {
	username := r.Header.Get("X-Username")
	if username == "" {
		username = r.URL.Query().Get("username")
	}
	if username == "" {
		return "", false
	}
	return username, true
}
