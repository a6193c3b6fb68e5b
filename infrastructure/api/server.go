// Package api exposes the router and its collaborators over HTTP: login,
// the WebSocket upgrade, history replay, search and the deletion flows.
package api

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/ws"
	"chat-relay/router"
	"chat-relay/search"
	"chat-relay/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const defaultSearchLimit = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Server struct {
	log         *slog.Logger
	authService services.IAuthService
	msgRouter   *router.Router
	index       *search.Index
	bufferSize  int
}

func NewServer(log *slog.Logger, authService services.IAuthService,
	msgRouter *router.Router, index *search.Index, bufferSize int) *Server {
	return &Server{
		log:         log,
		authService: authService,
		msgRouter:   msgRouter,
		index:       index,
		bufferSize:  bufferSize,
	}
}

// Routes builds the HTTP surface. Everything except login requires a valid
// session token.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(Authenticate)
	authed.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	authed.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	authed.HandleFunc("/history/group", s.handleGroupHistory).Methods(http.MethodGet)
	authed.HandleFunc("/history/{user}", s.handleConversation).Methods(http.MethodGet)
	authed.HandleFunc("/keys/{user}", s.handleKeys).Methods(http.MethodGet)
	authed.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	authed.HandleFunc("/delete_message/{id:[0-9]+}", s.handleDeleteMessage).Methods(http.MethodPost)
	authed.HandleFunc("/delete_group", s.handleDeleteGroup).Methods(http.MethodPost)
	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	token, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		s.log.Debug("login rejected", "username", req.Username, "error", err)
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": string(token)})
}

// handleWebSocket upgrades the connection and hands it to a ws.Client, which
// drives the router's connect/disconnect state machine. The call blocks for
// the lifetime of the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "username", username, "error", err)
		return
	}

	client := ws.NewClient(s.log, conn, s.msgRouter, username, s.bufferSize)
	client.Serve(r.Context())
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.authService.ListUsers()
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	type userRecord struct {
		ID        uint64 `json:"id"`
		Username  string `json:"username"`
		PublicKey int64  `json:"public_key"`
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u domain.User, _ int) userRecord {
		return userRecord{ID: u.ID, Username: u.Username, PublicKey: u.PublicKey}
	}))
}

type messageRecord struct {
	ID        uint64    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient *string   `json:"recipient"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func toMessageRecords(messages []domain.Message) []messageRecord {
	return lo.Map(messages, func(m domain.Message, _ int) messageRecord {
		return messageRecord{
			ID:        m.ID,
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Message:   m.Body,
			Timestamp: m.Timestamp,
		}
	})
}

func (s *Server) handleGroupHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := s.msgRouter.GroupHistory()
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toMessageRecords(messages))
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	other := mux.Vars(r)["user"]
	messages, err := s.msgRouter.Conversation(usernameFrom(r), other)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toMessageRecords(messages))
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	other := mux.Vars(r)["user"]
	keys, err := s.authService.Keys(usernameFrom(r), other)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	results, total, err := s.index.Search(r.Context(), q, defaultSearchLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "results": results})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	deleted, err := s.msgRouter.DeleteMessage(r.Context(), usernameFrom(r), id)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	count, err := s.msgRouter.ClearGroupMessages(r.Context())
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
