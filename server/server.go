package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lecture_builder/generator"
	"lecture_builder/publisher"
	"lecture_builder/twelvelabs"
)

const (
	defaultRequestTimeout = 120 * time.Second
	defaultStreamType     = "analysis"
	defaultMaxSessions    = 256
)

var errSessionNotFound = errors.New("session not found")

type Server struct {
	analyzer       generator.VideoAnalyzer
	agent          *generator.Agent
	indexID        string
	videoID        string
	logger         *zap.Logger
	requestTimeout time.Duration
	maxSessions    int
	store          *sessionStore
}

type Option func(*Server)

// WithReformatter enables the reasoning-agent fallback on every handler.
func WithReformatter(agent *generator.Agent) Option {
	return func(s *Server) { s.agent = agent }
}

// WithIndexID selects the index reported by GET /api/indexes.
func WithIndexID(indexID string) Option {
	return func(s *Server) { s.indexID = indexID }
}

// WithDefaultVideoID is used by POST /api/lectures when the body names no video.
func WithDefaultVideoID(videoID string) Option {
	return func(s *Server) { s.videoID = videoID }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestTimeout bounds provider work done for a single request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithMaxSessions caps how many lecture sessions are kept in memory.
func WithMaxSessions(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// sessionStore keeps sessions in memory. Once max is reached the oldest
// session is evicted.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*generator.Session
	order    []string
	max      int
}

func newStore(max int) *sessionStore {
	return &sessionStore{sessions: make(map[string]*generator.Session), max: max}
}

func (s *sessionStore) set(id string, sess *generator.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.order = append(s.order, id)
	}
	s.sessions[id] = sess
	for s.max > 0 && len(s.order) > s.max {
		delete(s.sessions, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *sessionStore) get(id string) (*generator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func New(analyzer generator.VideoAnalyzer, opts ...Option) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("video analyzer required")
	}
	s := &Server{
		analyzer:       analyzer,
		logger:         zap.NewNop(),
		requestTimeout: defaultRequestTimeout,
		maxSessions:    defaultMaxSessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = newStore(s.maxSessions)
	return s, nil
}

// Routes builds the gin engine serving the lecture API.
func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(recoveryMiddleware(s.logger), loggingMiddleware(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/indexes", s.handleIndexes)

	videos := api.Group("/videos/:video_id")
	videos.POST("/summary", videoRoute(s, (*generator.Handler).GenerateSummary))
	videos.POST("/gist", videoRoute(s, (*generator.Handler).GenerateGist))
	videos.POST("/chapters", videoRoute(s, (*generator.Handler).GenerateChapters))
	videos.POST("/key-takeaways", videoRoute(s, (*generator.Handler).GenerateKeyTakeaways))
	videos.POST("/pacing", videoRoute(s, (*generator.Handler).GeneratePacingRecommendations))
	videos.POST("/engagement", videoRoute(s, (*generator.Handler).GenerateEngagement))
	videos.POST("/quiz", s.handleQuiz)
	videos.POST("/stream", s.handleStream)

	lectures := api.Group("/lectures")
	lectures.POST("", s.handleLectureCreate)
	lectures.GET("/:id", s.handleLectureGet)
	lectures.POST("/:id/regenerate/:feature", s.handleLectureRegenerate)
	lectures.GET("/:id/html", s.handleLectureHTML)

	return r
}

// --- Handlers ---

type quizReq struct {
	Chapters []generator.Chapter `json:"chapters"`
}

type streamReq struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt" binding:"required"`
}

type lectureCreateReq struct {
	VideoID string `json:"video_id"`
}

type lectureResp struct {
	SessionID string            `json:"session_id"`
	Lecture   generator.Lecture `json:"lecture"`
	History   []generator.Turn  `json:"history"`
}

func (s *Server) handleIndexes(c *gin.Context) {
	h, err := s.handlerFor("")
	if err != nil {
		s.abort(c, err)
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	indexes, err := h.ListIndexes(ctx)
	if err != nil {
		s.abort(c, err)
		return
	}
	resp := gin.H{"indexes": indexes}
	if s.indexID != "" {
		selected, err := h.ResolveIndex(ctx)
		if err != nil {
			s.abort(c, err)
			return
		}
		resp["selected"] = selected
	}
	c.JSON(http.StatusOK, resp)
}

// videoRoute adapts a single-feature generate method to a handler.
func videoRoute[T any](s *Server, gen func(*generator.Handler, context.Context) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, err := s.handlerFor(c.Param("video_id"))
		if err != nil {
			s.abort(c, err)
			return
		}
		ctx, cancel := s.requestContext(c)
		defer cancel()
		out, err := gen(h, ctx)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) handleQuiz(c *gin.Context) {
	var req quizReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h, err := s.handlerFor(c.Param("video_id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	res, err := h.GenerateQuizQuestions(ctx, req.Chapters)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleStream relays every queued envelope as one SSE "message" event.
func (s *Server) handleStream(c *gin.Context) {
	var req streamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = defaultStreamType
	}
	h, err := s.handlerFor(c.Param("video_id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	// Streams are bounded by the client connection, not the request timeout.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	msgs := h.Stream(ctx, req.Type, req.Prompt)
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(io.Writer) bool {
		msg, ok := <-msgs
		if !ok {
			return false
		}
		c.SSEvent("message", msg)
		return true
	})
}

func (s *Server) handleLectureCreate(c *gin.Context) {
	var req lectureCreateReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	videoID := strings.TrimSpace(req.VideoID)
	if videoID == "" {
		videoID = s.videoID
	}
	if videoID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "video_id is required"})
		return
	}
	h, err := s.handlerFor(videoID)
	if err != nil {
		s.abort(c, err)
		return
	}

	id := generator.NewSessionID()
	sess := generator.NewSession(id, h)
	ctx, cancel := s.requestContext(c)
	defer cancel()
	lec, err := sess.Build(ctx)
	if err != nil {
		s.abort(c, err)
		return
	}
	s.store.set(id, sess)
	c.JSON(http.StatusCreated, lectureResp{SessionID: id, Lecture: lec, History: sess.History()})
}

func (s *Server) handleLectureGet(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, lectureResp{SessionID: sess.ID, Lecture: sess.Lecture(), History: sess.History()})
}

func (s *Server) handleLectureRegenerate(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	feature, err := generator.ParseFeature(c.Param("feature"))
	if err != nil {
		s.abort(c, err)
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	lec, err := sess.Regenerate(ctx, feature)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, lectureResp{SessionID: sess.ID, Lecture: lec, History: sess.History()})
}

func (s *Server) handleLectureHTML(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	doc, err := publisher.RenderHTML(sess.Lecture())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

// --- Helpers ---

func (s *Server) handlerFor(videoID string) (*generator.Handler, error) {
	return generator.NewHandler(s.analyzer, videoID,
		generator.WithIndexID(s.indexID),
		generator.WithReformatter(s.agent),
		generator.WithLogger(s.logger),
	)
}

func (s *Server) session(c *gin.Context) (*generator.Session, bool) {
	sess, ok := s.store.get(c.Param("id"))
	if !ok {
		s.abort(c, errSessionNotFound)
	}
	return sess, ok
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.requestTimeout)
}

// abort maps an error onto a status code and writes it as JSON.
func (s *Server) abort(c *gin.Context, err error) {
	var (
		genErr *generator.GenerationError
		preErr *generator.PreconditionError
		apiErr *twelvelabs.APIError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errSessionNotFound), errors.Is(err, generator.ErrIndexNotFound):
		status = http.StatusNotFound
	case errors.As(err, &preErr), errors.Is(err, generator.ErrUnknownFeature):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.As(err, &genErr), errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
