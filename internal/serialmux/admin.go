package serialmux

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// attachAdminRoutes registers the board console: an HTML page, a POST
// endpoint that writes one command, and a server-sent-events tail.
func attachAdminRoutes(mux *http.ServeMux, s SerialMuxInterface) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a command to the station board", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := sendCommandTemplate.Execute(w, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		handleSendCommand(w, r, s)
	})
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		handleTail(w, r, s)
	})
	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		_, _ = io.Copy(w, f)
	})
}

func handleSendCommand(w http.ResponseWriter, r *http.Request, s SerialMuxInterface) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	command := strings.TrimSpace(r.FormValue("command"))
	switch {
	case command == "":
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	case strings.ContainsAny(command, "\r\n"):
		// one request, one board command
		http.Error(w, "Command must be a single line", http.StatusBadRequest)
		return
	}
	if err := s.SendCommand(command); err != nil {
		http.Error(w, "Failed to write command", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "Wrote command %q to serial port", command)
}

// handleTail streams board lines as server-sent events. Each event is named
// after its line type; ?type=frame|status|log limits the stream to one type.
func handleTail(w http.ResponseWriter, r *http.Request, s SerialMuxInterface) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	only := r.URL.Query().Get("type")
	switch only {
	case "", EventTypeFrame, EventTypeStatus, EventTypeLog:
	default:
		http.Error(w, "Unknown line type", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, c := s.Subscribe()
	defer s.Unsubscribe(id)

	_, _ = io.WriteString(w, ": ping\n\n")
	flusher.Flush()

	for {
		select {
		case line, ok := <-c:
			if !ok {
				return
			}
			kind := ClassifyPayload(line)
			if only != "" && kind != only {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, line); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
