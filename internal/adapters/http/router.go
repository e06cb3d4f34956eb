package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Vote/internal/adapters/signal"
	"github.com/dkeye/Vote/internal/app/orch"
	"github.com/dkeye/Vote/internal/config"
	"github.com/dkeye/Vote/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionTokenKey = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// signed session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(sessionTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(sessionTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

// publicRoom is what an outsider may learn about a room before joining.
type publicRoom struct {
	Code             domain.RoomCode `json:"code"`
	Phase            domain.Phase    `json:"phase"`
	ParticipantCount int             `json:"participantCount"`
	ParticipantLimit int             `json:"participantLimit"`
	HasPassword      bool            `json:"hasPassword"`
	RequireApproval  bool            `json:"requireApproval"`
	IsVotingEnded    bool            `json:"isVotingEnded"`
}

func errorBody(code domain.Code) gin.H {
	return gin.H{"code": code, "message": code.UserMessage()}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("VoteSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/health", func(c *gin.Context) {
		rooms := o.Engine.Rooms.List()
		participants := 0
		for _, room := range rooms {
			participants += room.ParticipantCount
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"timestamp":    time.Now().UTC(),
			"rooms":        len(rooms),
			"participants": participants,
		})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		Signal:     signal.NewRoomRateLimiter(cfg.Signal.RateLimit, cfg.Signal.RateInterval),
		Chat:       signal.NewRoomRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateInterval),
	})

	api := r.Group("/api")

	api.GET("/rooms/:code", func(c *gin.Context) {
		code := domain.NormalizeRoomCode(c.Param("code"))
		if !code.Valid() {
			c.JSON(http.StatusBadRequest, errorBody(domain.CodeInvalidRoomCode))
			return
		}
		stats, err := o.Engine.GetRoomStats(code)
		if err != nil {
			c.JSON(http.StatusNotFound, errorBody(domain.CodeRoomNotFound))
			return
		}
		c.JSON(http.StatusOK, publicRoom{
			Code:             stats.Code,
			Phase:            stats.Phase,
			ParticipantCount: stats.ParticipantCount,
			ParticipantLimit: stats.ParticipantLimit,
			HasPassword:      stats.HasPassword,
			RequireApproval:  stats.RequireApproval,
			IsVotingEnded:    stats.IsVotingEnded,
		})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("token", c.GetString(signal.ClientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
