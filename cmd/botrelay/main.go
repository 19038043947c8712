package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"botrelay/internal/alerts"
	"botrelay/internal/chat"
	"botrelay/internal/config"
	"botrelay/internal/middleware"
	"botrelay/internal/relay"
	"botrelay/internal/server"
	"botrelay/internal/util"
)

func main() {
	godotenv.Load()
	config.Load()

	server.PrintBanner()
	util.EnsureDirs()

	mgr, err := chat.NewManager(config.DiscordToken)
	if err != nil {
		log.Fatalf("Failed to create chat session: %v", err)
	}

	rl := relay.New(mgr, config.BotChannelID)
	mgr.OnMessage(rl.HandleMessage)

	if err := mgr.Connect(); err != nil {
		// A scheduled reconnect keeps retrying unless the session halted.
		log.Printf("Initial connect failed: %v", err)
	}
	mgr.StartProbe()

	util.StartSweep()
	middleware.StartRateLimitCleanup()

	srv := server.New(rl)
	go func() {
		log.Printf("Listening on :%s", config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()
	alerts.ServerStarted()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	alerts.ServerStopping()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	mgr.Close()

	log.Println("Stopped.")
}
