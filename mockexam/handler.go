package mockexam

import (
	"log"
	"net/http"
	"strconv"

	"c3exam-backend/login"
	"c3exam-backend/questions"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	recorder  *Recorder
	questions *questions.Repository
}

func NewHandler(recorder *Recorder, qrepo *questions.Repository) *Handler {
	return &Handler{recorder: recorder, questions: qrepo}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	g := r.Group("/exams", login.RequireAuth(), login.RequirePaid("模拟考试为会员功能，请先开通会员"))
	g.POST("/mock", h.submit)
	g.GET("/mock", h.history)
}

type submitItem struct {
	QuestionID int    `json:"question_id"`
	Selected   string `json:"selected"`
}

type submitRequest struct {
	Answers []submitItem `json:"answers"`
}

// submit grades the paper server-side and records the result. The client
// never supplies a score.
func (h *Handler) submit(c *gin.Context) {
	user := login.CurrentUser(c)
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Answers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据"})
		return
	}

	var (
		score, correctCount int
		answers             []Answer
	)
	for _, it := range req.Answers {
		q, err := h.questions.GetByID(it.QuestionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if q == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "题目不存在: " + strconv.Itoa(it.QuestionID)})
			return
		}
		pts := ScorePoints(q.Type, q.Answer, it.Selected)
		correct := q.IsCorrect(it.Selected)
		score += pts
		if correct {
			correctCount++
		}
		answers = append(answers, Answer{
			QuestionID: q.ID,
			Selected:   questions.NormalizeLabels(it.Selected),
			Correct:    correct,
		})
	}

	rec, err := h.recorder.Record(user.ID, score, len(req.Answers), correctCount, answers)
	if err != nil {
		log.Printf("[MOCKEXAM] record failed userID=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func (h *Handler) history(c *gin.Context) {
	user := login.CurrentUser(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	list, err := h.recorder.History(user.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}
