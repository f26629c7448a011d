package httpapi

import (
	"net/http"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/board"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/feedback"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/go-chi/chi/v5"
)

// submitCard - элемент в списке доски без адресов голосующих.
type submitCard struct {
	ID        string            `json:"id"`
	Type      domain.SubmitType `json:"type"`
	TypeLabel string            `json:"type_label"`
	Title     string            `json:"title"`
	Desc      string            `json:"desc"`
	Status    domain.Status     `json:"status"`
	Progress  domain.Progress   `json:"progress"`
	Votes     int               `json:"votes"`
	Comments  int               `json:"comments"`
	CreatedAt time.Time         `json:"created_at"`
}

func cards(subs []*domain.Submit) []submitCard {
	out := make([]submitCard, 0, len(subs))
	for _, s := range subs {
		out = append(out, submitCard{
			ID:        s.ID,
			Type:      s.Type,
			TypeLabel: s.Type.Label(),
			Title:     s.Title,
			Desc:      s.Desc,
			Status:    s.Status,
			Progress:  s.Progress,
			Votes:     s.Votes,
			Comments:  len(s.Comments),
			CreatedAt: s.CreatedAt,
		})
	}
	return out
}

// boardResponse - настройки доски и её элементы.
type boardResponse struct {
	Configured   bool         `json:"configured"`
	Slug         string       `json:"slug,omitempty"`
	BrandName    string       `json:"brand_name,omitempty"`
	BoardTitle   string       `json:"board_title,omitempty"`
	PrimaryColor string       `json:"primary_color,omitempty"`
	HomeURL      string       `json:"home_url,omitempty"`
	LogoURL      string       `json:"logo_url,omitempty"`
	Submits      []submitCard `json:"submits"`
}

func listParams(r *http.Request) board.ListParams {
	q := r.URL.Query()
	return board.ListParams{
		Progress: domain.Progress(q.Get("progress")),
		Category: q.Get("category"),
		Sort:     storage.SortKey(q.Get("sort")),
	}
}

// loadBoard собирает доску. Для ненастроенного хоста - пустая доска.
func (s *Server) loadBoard(r *http.Request) (*boardResponse, error) {
	acc := account(r)
	if acc == nil {
		return &boardResponse{Submits: []submitCard{}}, nil
	}
	subs, err := s.Board.List(r.Context(), acc, listParams(r))
	if err != nil {
		return nil, err
	}
	return &boardResponse{
		Configured:   true,
		Slug:         acc.Slug,
		BrandName:    acc.BrandName,
		BoardTitle:   acc.BoardTitle,
		PrimaryColor: acc.PrimaryColor,
		HomeURL:      acc.HomeURL,
		LogoURL:      s.Board.LogoURL(r.Context(), acc),
		Submits:      cards(subs),
	}, nil
}

// === Board ===

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	resp, err := s.loadBoard(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	acc := account(r)
	if acc == nil {
		writeJSON(w, http.StatusOK, []submitCard{})
		return
	}
	subs, err := s.Board.List(r.Context(), acc, listParams(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards(subs))
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	d, err := s.Board.Detail(r.Context(), acc, chi.URLParam(r, "id"), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"email": rememberedEmail(r)})
}

// === Intake ===

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, false)
}

func (s *Server) handleWidgetSubmit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, true)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, widget bool) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var in feedback.NewSubmission
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.Widget = widget
	sub, err := s.Feedback.Submit(r.Context(), acc, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.rememberEmail(w, sub.Email)
	writeJSON(w, http.StatusCreated, cards([]*domain.Submit{sub})[0])
}

// === Votes & Comments ===

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var in feedback.VoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.Feedback.Vote(r.Context(), acc, chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.rememberEmail(w, in.Email)
	writeJSON(w, http.StatusOK, cards([]*domain.Submit{sub})[0])
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var in feedback.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Feedback.Comment(r.Context(), acc, chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.rememberEmail(w, in.Email)
	writeJSON(w, http.StatusCreated, board.ViewComment(c, true))
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var in feedback.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Feedback.Reply(r.Context(), acc, chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.rememberEmail(w, in.Email)
	writeJSON(w, http.StatusCreated, board.ViewComment(c, true))
}
