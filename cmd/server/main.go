package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lukev/auctionhouse/internal/api"
	"github.com/lukev/auctionhouse/internal/broadcast"
	"github.com/lukev/auctionhouse/internal/engine"
	"github.com/lukev/auctionhouse/internal/registry"
	"github.com/lukev/auctionhouse/internal/store"
	"github.com/lukev/auctionhouse/internal/transport/ws"
)

func main() {
	bc := broadcast.New()
	mem := store.NewMemStore()
	eng := engine.New(bc, mem)
	reg := registry.New(eng)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	wsHandler := ws.NewHandler(eng, reg)
	router.HandleFunc("/ws", wsHandler.ServeAuction)

	auctionsHandler := api.NewAuctionsHandler(eng, reg)
	auctionsHandler.RegisterRoutes(router)

	addr := ":8080"
	log.Printf("auction house server starting on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
