package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) summary(c *gin.Context) {
	out, err := s.deps.Analytics.Summary(c.Request.Context(), currentUserID(c), s.today())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) heatmap(c *gin.Context) {
	out, err := s.deps.Analytics.Heatmap(c.Request.Context(), currentUserID(c), s.today())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) trends(c *gin.Context) {
	out, err := s.deps.Analytics.Trends(c.Request.Context(), currentUserID(c), s.today())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) taskDetail(c *gin.Context) {
	out, err := s.deps.Analytics.TaskDetail(c.Request.Context(), currentUserID(c), c.Param("id"), s.today())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
