// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// NewHandler exposes the command service as a small JSON API for
// local front-ends. Every command responds 200 with {"ok": ..,
// "reply": ..}; only malformed requests get a 4xx.
func NewHandler(service *Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &handler{service: service, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /task/start", h.taskStart)
	mux.HandleFunc("POST /task/done", h.taskDone)
	mux.HandleFunc("POST /task/skip", h.taskSkip)
	mux.HandleFunc("POST /task/extend", h.taskExtend)
	mux.HandleFunc("GET /task/status", h.taskStatus)
	mux.HandleFunc("POST /break", h.breakStart)
	mux.HandleFunc("POST /day/done", h.dayDone)
	mux.HandleFunc("GET /history", h.history)
	mux.HandleFunc("POST /reminds", h.remindAdd)
	mux.HandleFunc("GET /reminds", h.remindList)
	mux.HandleFunc("DELETE /reminds/{id}", h.remindDelete)
	return mux
}

type handler struct {
	service *Service
	logger  *slog.Logger
}

func (h *handler) taskStart(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Name    string `json:"name"`
		Minutes int    `json:"minutes"`
	}
	if !h.decode(w, r, &request) {
		return
	}
	h.respond(w, h.service.StartTask(r.Context(), request.Name, request.Minutes))
}

func (h *handler) taskDone(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Comment string `json:"comment"`
	}
	if !h.decode(w, r, &request) {
		return
	}
	h.respond(w, h.service.CompleteTask(r.Context(), request.Comment))
}

func (h *handler) taskSkip(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.service.SkipTask(r.Context()))
}

func (h *handler) taskExtend(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Minutes int `json:"minutes"`
	}
	if !h.decode(w, r, &request) {
		return
	}
	h.respond(w, h.service.ExtendTask(r.Context(), request.Minutes))
}

func (h *handler) taskStatus(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.service.Status(r.Context()))
}

func (h *handler) breakStart(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Minutes int `json:"minutes"`
	}
	if !h.decode(w, r, &request) {
		return
	}
	h.respond(w, h.service.StartBreak(r.Context(), request.Minutes))
}

func (h *handler) dayDone(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.service.DoneForToday(r.Context()))
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}
	h.respond(w, h.service.History(r.Context(), days))
}

func (h *handler) remindAdd(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Time            string   `json:"time"`
		Days            []string `json:"days"`
		IncludeHolidays bool     `json:"include_holidays"`
		Message         string   `json:"message"`
	}
	if !h.decode(w, r, &request) {
		return
	}
	h.respond(w, h.service.AddRemind(r.Context(), request.Time, request.Days, request.IncludeHolidays, request.Message))
}

func (h *handler) remindList(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.service.ListReminds(r.Context()))
}

func (h *handler) remindDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "id must be an integer", http.StatusBadRequest)
		return
	}
	h.respond(w, h.service.DeleteRemind(r.Context(), id))
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *handler) respond(w http.ResponseWriter, result Result) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		OK    bool   `json:"ok"`
		Reply string `json:"reply"`
	}{OK: result.OK, Reply: result.Reply}); err != nil {
		h.logger.Warn("writing command response", "error", err)
	}
}
