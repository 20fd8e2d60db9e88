package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/notepid/twilight_messenger/internal/message"
)

type conversationJSON struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Members        []string   `json:"members"`
	CreatedAt      time.Time  `json:"created_at"`
	AutodestructAt *time.Time `json:"autodestruct_at"`
}

type messageJSON struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text,omitempty"`
}

func toConversationJSON(c *message.Conversation) conversationJSON {
	out := conversationJSON{
		ID:        c.ID.String(),
		Title:     c.Title,
		Members:   c.Members,
		CreatedAt: c.CreatedAt.UTC(),
	}
	if out.Members == nil {
		out.Members = []string{}
	}
	if c.AutodestructAt != nil {
		at := c.AutodestructAt.UTC()
		out.AutodestructAt = &at
	}
	return out
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	convs, err := s.messages.ListForUser(u.ID)
	if err != nil {
		log.Error().Err(err).Int("user_id", u.ID).Msg("list conversations")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return
	}

	out := make([]conversationJSON, 0, len(convs))
	for _, c := range convs {
		out = append(out, toConversationJSON(c))
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	var payload struct {
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON.", http.StatusBadRequest)
		return
	}

	names := make([]string, 0, len(payload.Members)+1)
	hasSelf := false
	for _, m := range payload.Members {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if m == u.Username {
			hasSelf = true
		}
		names = append(names, m)
	}
	if !hasSelf {
		names = append(names, u.Username)
	}

	members, missing, err := s.users.Resolve(names)
	if err != nil {
		log.Error().Err(err).Msg("resolve members")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return
	}
	if len(missing) > 0 {
		respondError(w, http.StatusBadRequest, "invalid_usernames",
			"The following usernames do not exist: "+strings.Join(missing, ", "))
		return
	}

	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}

	conv, err := s.messages.CreateConversation(strings.Join(names, ", "), ids)
	if err != nil {
		log.Error().Err(err).Msg("create conversation")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return
	}

	log.Info().Str("conversation_id", conv.ID.String()).Str("title", conv.Title).Msg("conversation created")
	respondJSON(w, http.StatusCreated, toConversationJSON(conv))
}

// memberConversation loads the conversation named in the URL and checks
// that the current user belongs to it. It writes the error response itself
// and returns nil on failure.
func (s *Server) memberConversation(w http.ResponseWriter, r *http.Request) *message.Conversation {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.NotFound(w, r)
		return nil
	}

	conv, err := s.messages.GetConversation(id)
	if errors.Is(err, message.ErrNotFound) {
		http.NotFound(w, r)
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("conversation_id", id.String()).Msg("get conversation")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return nil
	}

	if !s.messages.IsMember(conv.ID, currentUser(r.Context()).ID) {
		http.Error(w, "Not a member of this conversation", http.StatusForbidden)
		return nil
	}
	return conv
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv := s.memberConversation(w, r)
	if conv == nil {
		return
	}
	if !s.purgeExpired(w, conv) {
		return
	}

	msgs, err := s.messages.ListMessages(conv.ID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID.String()).Msg("list messages")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return
	}

	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON{
			ID:        m.ID.String(),
			Sender:    m.SenderName,
			CreatedAt: m.CreatedAt.UTC(),
			Text:      m.Body,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	conv := s.memberConversation(w, r)
	if conv == nil {
		return
	}
	if !s.purgeExpired(w, conv) {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON.", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		http.Error(w, "Blank text.", http.StatusBadRequest)
		return
	}

	u := currentUser(r.Context())
	msg, err := s.messages.Post(conv.ID, u.ID, payload.Text)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID.String()).Msg("post message")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, messageJSON{
		ID:        msg.ID.String(),
		Sender:    u.Username,
		CreatedAt: msg.CreatedAt.UTC(),
	})
}

func (s *Server) handleAutodestruct(w http.ResponseWriter, r *http.Request) {
	conv := s.memberConversation(w, r)
	if conv == nil {
		return
	}

	var payload struct {
		DelayMinutes any `json:"delay_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON or delay time", http.StatusBadRequest)
		return
	}
	minutes, err := parseDelay(payload.DelayMinutes)
	if err != nil {
		http.Error(w, "Invalid JSON or delay time", http.StatusBadRequest)
		return
	}
	if !message.ValidDelay(minutes) {
		http.Error(w, "Invalid delay value.", http.StatusBadRequest)
		return
	}

	at, err := s.messages.ScheduleAutodestruct(conv.ID, time.Duration(minutes)*time.Minute)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID.String()).Msg("schedule autodestruct")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return
	}

	log.Info().Str("conversation_id", conv.ID.String()).Int("delay_minutes", minutes).Msg("autodestruct scheduled")
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "set",
		"autodestruct_at": at.UTC(),
	})
}

// purgeExpired drops the conversation's messages once its deadline passed.
func (s *Server) purgeExpired(w http.ResponseWriter, conv *message.Conversation) bool {
	purged, removed, err := s.messages.PurgeIfExpired(conv)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID.String()).Msg("purge conversation")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return false
	}
	if purged {
		log.Info().
			Str("conversation_id", conv.ID.String()).
			Int("messages", removed).
			Msg("conversation self-destructed")
	}
	return true
}

// parseDelay accepts a JSON number or a numeric string, the way a form
// value would arrive.
func parseDelay(v any) (int, error) {
	switch d := v.(type) {
	case float64:
		if d != float64(int(d)) {
			return 0, fmt.Errorf("delay %v is not an integer", d)
		}
		return int(d), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(d))
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported delay type %T", v)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, map[string]string{"error": code, "message": msg})
}
