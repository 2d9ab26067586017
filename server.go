package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aiopschat/agent"
	"aiopschat/history"
	"aiopschat/logger"
)

// ChatHandler runs one chat turn. Implemented by agent.Orchestrator.
type ChatHandler interface {
	HandleMessage(ctx context.Context, threadID, userMessage string, sink agent.EventSink) (*agent.FinalMessage, error)
}

// Server exposes the chat agent over HTTP. Trajectory events and the
// final message stream to the client as server-sent events; uploaded
// files are retrievable from the file endpoints, so the resolver's
// platform URL can point back at this process for self-contained
// deployments.
type Server struct {
	chat     ChatHandler
	resolver *agent.FileReferenceResolver
	files    *agent.MemoryPlatformStore
	store    *history.Store
	log      *logger.Logger
}

// NewServer wires the HTTP layer.
func NewServer(chat ChatHandler, resolver *agent.FileReferenceResolver, files *agent.MemoryPlatformStore, store *history.Store, log *logger.Logger) *Server {
	return &Server{
		chat:     chat,
		resolver: resolver,
		files:    files,
		store:    store,
		log:      log,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/api/v1/chat", s.handleChat)

	r.Post("/api/v1/files", s.handleFileUpload)
	r.Get("/api/v1/files/{fileID}/content", s.handleFileContent)

	r.Get("/api/v1/threads", s.handleListThreads)
	r.Get("/api/v1/threads/{threadID}/messages", s.handleThreadMessages)
	r.Delete("/api/v1/threads/{threadID}", s.handleDeleteThread)

	return r
}

type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type attachmentPayload struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type finalPayload struct {
	Text        string              `json:"text"`
	Attachments []attachmentPayload `json:"attachments"`
}

// handleChat runs one turn and streams its progress as SSE: zero or more
// "trajectory" events followed by exactly one "message" or "error" event.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" || req.Message == "" {
		http.Error(w, "thread_id and message are required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent := func(event string, payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	s.log.Logf("chat: thread=%s len=%d", req.ThreadID, len(req.Message))

	final, err := s.chat.HandleMessage(r.Context(), req.ThreadID, req.Message, func(ev agent.TrajectoryEvent) {
		writeEvent("trajectory", ev)
	})
	if err != nil {
		s.log.Logf("chat: thread=%s failed: %v", req.ThreadID, err)
		msg := "internal error"
		if errors.Is(err, agent.ErrNoFinalAnswer) {
			msg = "The agent could not produce an answer. Please try rephrasing your question."
		}
		writeEvent("error", map[string]string{"message": msg})
		return
	}

	payload := finalPayload{Text: final.Text, Attachments: []attachmentPayload{}}
	for _, att := range final.Attachments {
		payload.Attachments = append(payload.Attachments, attachmentPayload{
			ID:          att.ID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			URL:         s.resolver.FileURL(att.ID),
		})
	}
	writeEvent("message", payload)
}

// handleFileUpload accepts a multipart file and stores it in memory,
// returning the assigned ID. This is the serving half of the platform
// file API contract the resolver uploads against.
func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	contentType := r.FormValue("content_type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stored, err := s.files.CreateFile(r.Context(), header.Filename, contentType, content)
	if err != nil {
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": stored.ID})
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	file, ok := s.files.Get(fileID)
	if !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.Filename))
	w.Write(file.Content)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.store.Threads(r.Context())
	if err != nil {
		http.Error(w, "failed to list threads", http.StatusInternalServerError)
		return
	}
	if threads == nil {
		threads = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"threads": threads})
}

func (s *Server) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	msgs, err := s.store.Messages(r.Context(), threadID)
	if err != nil {
		http.Error(w, "failed to load messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []agent.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]agent.Message{"messages": msgs})
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if err := s.store.DeleteThread(r.Context(), threadID); err != nil {
		http.Error(w, "failed to delete thread", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
