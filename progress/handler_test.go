package progress

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"c3exam-backend/migrations"
	"c3exam-backend/questions"

	"github.com/gin-gonic/gin"
)

type fakeStore struct {
	gotUserID     int
	gotQuestionID int
	gotAnswer     string
	gotCorrect    bool
}

func (s *fakeStore) RecordAnswer(userID, questionID int, userAnswer string, correct bool) (*AnswerResult, error) {
	s.gotUserID = userID
	s.gotQuestionID = questionID
	s.gotAnswer = userAnswer
	s.gotCorrect = correct
	return &AnswerResult{Action: "created", New: &State{UserID: userID, QuestionID: questionID}}, nil
}

func (s *fakeStore) SetCollected(userID, questionID int, collected bool) error { return nil }
func (s *fakeStore) SetRecited(userID, questionID int, recited bool) error     { return nil }
func (s *fakeStore) SetNote(userID, questionID int, note *string) error        { return nil }
func (s *fakeStore) GetState(userID, questionID int) (*State, error)           { return nil, nil }
func (s *fakeStore) ListWrong(userID int) ([]StateItem, error)                 { return nil, nil }
func (s *fakeStore) ListCollected(userID int) ([]StateItem, error)             { return nil, nil }

type fakeQuestions struct {
	byID map[int]*questions.Question
}

func (f *fakeQuestions) GetByID(id int) (*questions.Question, error) {
	return f.byID[id], nil
}

func answerRig(t *testing.T, store *fakeStore, qs *fakeQuestions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, qs)
	r := gin.New()
	r.POST("/practice/answer",
		func(c *gin.Context) { c.Set("auth_user", &migrations.User{ID: 5}) },
		h.answer)
	return r
}

func postAnswer(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/practice/answer", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnswer_storesRawSubmissionGradesNormalized(t *testing.T) {
	store := &fakeStore{}
	qs := &fakeQuestions{byID: map[int]*questions.Question{
		12: {ID: 12, Type: questions.TypeMultiple, Answer: "AC", Explanation: "解析"},
	}}
	r := answerRig(t, store, qs)

	// Lower-case, reversed order: correct after normalization, but the
	// ledger must keep the submission verbatim.
	w := postAnswer(r, `{"question_id":12,"answer":"ca"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.gotAnswer != "ca" {
		t.Fatalf("ledger must receive the raw answer, got %q", store.gotAnswer)
	}
	if !store.gotCorrect {
		t.Fatal("grading must be order- and case-insensitive")
	}
	if store.gotUserID != 5 || store.gotQuestionID != 12 {
		t.Fatalf("wrong identities recorded: user=%d question=%d", store.gotUserID, store.gotQuestionID)
	}

	var body struct {
		Correct bool `json:"correct"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Correct {
		t.Fatal("response must report the graded result")
	}
}

func TestAnswer_unknownQuestion404(t *testing.T) {
	store := &fakeStore{}
	r := answerRig(t, store, &fakeQuestions{byID: map[int]*questions.Question{}})

	w := postAnswer(r, `{"question_id":99,"answer":"A"}`)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if store.gotQuestionID != 0 {
		t.Fatal("nothing must be recorded for a missing question")
	}
}
