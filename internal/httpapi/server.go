package httpapi

import (
	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine
}

func NewServer(engine *gin.Engine) *Server {
	return &Server{Engine: engine}
}

func (s *Server) Run(address string) error {
	return s.Engine.Run(address)
}
