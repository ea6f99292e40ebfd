package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"lingobridge/internal/config"
	"lingobridge/internal/constants"
	"lingobridge/internal/middleware"
	"lingobridge/internal/models"
	"lingobridge/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router        *mux.Router
	logger        *logrus.Logger
	coordinator   *service.SyncCoordinator
	resolver      *service.GroupResolver
	groupsPath    string
	webhookSecret string
	server        *http.Server
}

func NewServer(coordinator *service.SyncCoordinator, resolver *service.GroupResolver, groupsPath, webhookSecret string, logger *logrus.Logger) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		logger:        logger,
		coordinator:   coordinator,
		resolver:      resolver,
		groupsPath:    groupsPath,
		webhookSecret: webhookSecret,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// Push-style delivery of message events for deployments that cannot
	// hold a gateway connection open.
	events := s.router.PathPrefix("/webhook/events").Subrouter()
	events.HandleFunc("", s.handleMessageEvent()).Methods(http.MethodPost)

	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/groups/reload", s.handleGroupsReload()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = fmt.Sprintf("%d", constants.DefaultServerPort)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %s", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Warn("Failed to write health response")
		}
	}
}

func (s *Server) handleMessageEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := verifySignature(r, s.webhookSecret, "X-Webhook-Signature")
		if err != nil {
			s.logger.WithError(err).Warn("Rejected webhook event")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var msg models.IncomingMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		s.coordinator.HandleMessage(r.Context(), &msg)
		w.WriteHeader(http.StatusOK)
	}
}

// handleGroupsReload re-reads the group configuration from disk and swaps
// it into the resolver. In-flight messages keep the snapshot they started
// with.
func (s *Server) handleGroupsReload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := config.LoadGroups(s.groupsPath)
		if err != nil {
			s.logger.WithError(err).Error("Failed to reload group configuration")
			http.Error(w, "Failed to reload groups", http.StatusInternalServerError)
			return
		}

		s.resolver.Reload(snapshot)
		s.logger.WithField("servers", len(snapshot)).Info("Group configuration reloaded")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]int{"servers": len(snapshot)}); err != nil {
			s.logger.WithError(err).Warn("Failed to encode reload response")
		}
	}
}
