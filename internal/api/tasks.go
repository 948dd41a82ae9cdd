package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// startCycleRequest is the body of POST /api/cycles.
type startCycleRequest struct {
	Tasks []types.TaskSpec `json:"tasks"`
}

// taskView is an active task with today's completion flag.
type taskView struct {
	types.Task
	IsCompleteToday bool `json:"is_complete_today"`
}

// noteRequest is the body of POST /api/tasks/:id/notes.
type noteRequest struct {
	Note string `json:"note"`
}

func (s *Server) startCycle(c *gin.Context) {
	var req startCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	res, err := s.deps.Cycles.StartCycle(c.Request.Context(), currentUserID(c), req.Tasks, s.today())
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.CyclesStarted.Inc()
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) listTasks(c *gin.Context) {
	tasks, done, err := s.deps.Completions.TodayStatus(c.Request.Context(), currentUserID(c), s.today())
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]taskView, len(tasks))
	for i, t := range tasks {
		views[i] = taskView{Task: t, IsCompleteToday: done[t.TaskID]}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views})
}

func (s *Server) listExpired(c *gin.Context) {
	tasks, err := s.deps.Ledger.ListExpiredTasks(c.Request.Context(), currentUserID(c), s.today())
	if err != nil {
		s.fail(c, err)
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"expired_tasks": tasks})
}

func (s *Server) taskHistory(c *gin.Context) {
	task, rows, err := s.deps.Completions.History(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if rows == nil {
		rows = []types.Completion{}
	}
	c.JSON(http.StatusOK, gin.H{"task": task, "history": rows})
}

// toggleCompletion flips today's completion. Past days are read-only over
// HTTP.
func (s *Server) toggleCompletion(c *gin.Context) {
	taskID := c.Param("id")
	today := s.today()
	value, err := s.deps.Completions.ToggleCompletion(c.Request.Context(), currentUserID(c), taskID, today)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.Toggles.WithLabelValues(toggleState(value)).Inc()
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id":     taskID,
		"date":        today,
		"is_complete": value,
	})
}

func toggleState(done bool) string {
	if done {
		return "complete"
	}
	return "incomplete"
}

func (s *Server) addNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	text := strings.TrimSpace(req.Note)
	if text == "" {
		s.fail(c, types.Errorf(types.ErrValidation, "add note", "note is required"))
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	task, err := s.deps.Ledger.GetTask(ctx, userID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	note := &types.TaskNote{TaskID: task.TaskID, UserID: userID, Note: text}
	if err := s.deps.Ledger.AddNote(ctx, note); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (s *Server) listNotes(c *gin.Context) {
	ctx := c.Request.Context()
	task, err := s.deps.Ledger.GetTask(ctx, currentUserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	notes, err := s.deps.Ledger.ListNotes(ctx, task.TaskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if notes == nil {
		notes = []types.TaskNote{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}
