package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/UkralStul/feedback-board-service/internal/auth"
	"github.com/UkralStul/feedback-board-service/internal/feedback"
	"github.com/UkralStul/feedback-board-service/internal/mailer"
)

type sendRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// demoRequest - вебхук формы опроса: email в первом поле.
type demoRequest struct {
	CreatedAt string `json:"createdAt"`
	Data      struct {
		Fields []struct {
			Value string `json:"value"`
		} `json:"fields"`
	} `json:"data"`
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method Not Allowed"})
}

// handleSend отправляет произвольное письмо от имени сервиса. Ошибка
// провайдера возвращается как есть с кодом 400.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var in sendRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Subject == "" {
		s.writeError(w, r, &feedback.ValidationError{Err: errors.New("email and subject are required")})
		return
	}
	s.log.Info("raw email requested", "by", auth.Admin(r.Context()).Slug, "to", in.Email)
	res, err := s.Mailer.Send(r.Context(), mailer.KindRaw, mailer.Message{
		To:      []string{in.Email},
		Subject: in.Subject,
		HTML:    in.HTML,
	})
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSendDemo отправляет письмо демо-опроса на адрес из вебхука.
func (s *Server) handleSendDemo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var in demoRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(in.Data.Fields) == 0 || strings.TrimSpace(in.Data.Fields[0].Value) == "" {
		s.writeError(w, r, &feedback.ValidationError{Err: errors.New("data.fields[0].value must hold an email")})
		return
	}
	msg, err := s.Mailer.SurveyDemoMessage(strings.TrimSpace(in.Data.Fields[0].Value))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Mailer.Send(r.Context(), mailer.KindSurveyDemo, msg)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeProviderError отдает ответ провайдера без изменений, если он есть.
func writeProviderError(w http.ResponseWriter, err error) {
	var apiErr *mailer.APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(apiErr.Body))
		return
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}
