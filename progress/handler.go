package progress

import (
	"log"
	"net/http"
	"strconv"

	"c3exam-backend/login"
	"c3exam-backend/questions"

	"github.com/gin-gonic/gin"
)

// Store is the slice of the repository the handler needs; *Repository
// satisfies it.
type Store interface {
	RecordAnswer(userID, questionID int, userAnswer string, correct bool) (*AnswerResult, error)
	SetCollected(userID, questionID int, collected bool) error
	SetRecited(userID, questionID int, recited bool) error
	SetNote(userID, questionID int, note *string) error
	GetState(userID, questionID int) (*State, error)
	ListWrong(userID int) ([]StateItem, error)
	ListCollected(userID int) ([]StateItem, error)
}

// QuestionSource resolves submitted question ids against the catalog.
type QuestionSource interface {
	GetByID(id int) (*questions.Question, error)
}

type Handler struct {
	repo      Store
	questions QuestionSource
}

func NewHandler(repo Store, qrepo QuestionSource) *Handler {
	return &Handler{repo: repo, questions: qrepo}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	auth := r.Group("/practice", login.RequireAuth())
	auth.POST("/answer", h.answer)
	auth.POST("/collect", h.collect)
	auth.POST("/recite", h.recite)
	auth.POST("/note", h.note)
	auth.GET("/state/:questionId", h.state)
	auth.GET("/wrong", h.wrong)
	auth.GET("/collected", h.collected)
}

type answerRequest struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

func (h *Handler) answer(c *gin.Context) {
	user := login.CurrentUser(c)
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QuestionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少题目ID"})
		return
	}
	q, err := h.questions.GetByID(req.QuestionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "题目不存在"})
		return
	}
	// The ledger keeps the submission verbatim; normalization is only for
	// the correctness comparison.
	correct := q.IsCorrect(req.Answer)
	res, err := h.repo.RecordAnswer(user.ID, q.ID, req.Answer, correct)
	if err != nil {
		log.Printf("[PRACTICE] record answer failed userID=%d questionID=%d: %v", user.ID, q.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correct":     correct,
		"answer":      q.Answer,
		"explanation": q.Explanation,
		"action":      res.Action,
		"state":       res.New,
	})
}

type flagRequest struct {
	QuestionID int  `json:"question_id"`
	Value      bool `json:"value"`
}

func (h *Handler) collect(c *gin.Context) {
	user := login.CurrentUser(c)
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QuestionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少题目ID"})
		return
	}
	if err := h.repo.SetCollected(user.ID, req.QuestionID, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) recite(c *gin.Context) {
	user := login.CurrentUser(c)
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QuestionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少题目ID"})
		return
	}
	if err := h.repo.SetRecited(user.ID, req.QuestionID, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type noteRequest struct {
	QuestionID int     `json:"question_id"`
	Note       *string `json:"note"`
}

func (h *Handler) note(c *gin.Context) {
	user := login.CurrentUser(c)
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QuestionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少题目ID"})
		return
	}
	if err := h.repo.SetNote(user.ID, req.QuestionID, req.Note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) state(c *gin.Context) {
	user := login.CurrentUser(c)
	id, err := strconv.Atoi(c.Param("questionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的题目ID"})
		return
	}
	s, err := h.repo.GetState(user.ID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Absence means untouched; return an empty aggregate instead of 404.
	if s == nil {
		s = &State{UserID: user.ID, QuestionID: id}
	}
	c.JSON(http.StatusOK, gin.H{"data": s})
}

func (h *Handler) wrong(c *gin.Context) {
	user := login.CurrentUser(c)
	list, err := h.repo.ListWrong(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (h *Handler) collected(c *gin.Context) {
	user := login.CurrentUser(c)
	list, err := h.repo.ListCollected(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}
