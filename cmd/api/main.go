package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classpin/internal/audit"
	"classpin/internal/auth"
	"classpin/internal/checkin"
	"classpin/internal/config"
	"classpin/internal/httpmiddleware"
	"classpin/internal/location"
	"classpin/internal/metrics"
	"classpin/internal/queue"
	"classpin/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL, store.DBOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.AuditQueueKey)
	}
	sink := audit.NewSink(q)

	repo := checkin.NewRepository(db.Client)
	svc := checkin.NewService(repo, sink, cfg.LocationHighTimeout, cfg.LocationLowTimeout, cfg.LocationMaxCachedAge)
	sessions := auth.NewSessionStore(redisClient.Client, "")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := repo.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		tokens, err := auth.Issue(user.ID, user.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		if err := sessions.Save(c.Request.Context(), user.ID, tokens.RefreshToken, cfg.RefreshTTL); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session store failed"})
			return
		}
		sink.Record(c.Request.Context(), user.ID, "auth.login", "role="+user.Role)

		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"role":          user.Role,
		})
	})

	r.POST("/v1/auth/refresh", func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		userID, err := sessions.Validate(c.Request.Context(), req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		claims, err := auth.Parse(req.RefreshToken, cfg.JWTSigningKey, cfg.JWTIssuer)
		if err != nil || claims.Subject != userID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}

		tokens, err := auth.Issue(userID, claims.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		// Rotation: old session goes away before the new one is handed out.
		_ = sessions.Revoke(c.Request.Context(), req.RefreshToken)
		if err := sessions.Save(c.Request.Context(), userID, tokens.RefreshToken, cfg.RefreshTTL); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session store failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.RequireAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	staff := authGroup.Group("", auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin))

	staff.POST("/lessons", func(c *gin.Context) {
		var req struct {
			Name               string  `json:"name" binding:"required"`
			TargetLatitude     float64 `json:"target_latitude"`
			TargetLongitude    float64 `json:"target_longitude"`
			RadiusMeters       float64 `json:"radius_meters" binding:"required"`
			DetectionLevel     string  `json:"detection_level"`
			AllowSkipGPS       bool    `json:"allow_skip_gps"`
			PINValiditySeconds int     `json:"pin_validity_seconds"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)

		validity := time.Duration(req.PINValiditySeconds) * time.Second
		if validity <= 0 {
			validity = cfg.DefaultPINValidity
		}
		lesson, err := repo.CreateLesson(c.Request.Context(), checkin.Lesson{
			Name:            req.Name,
			TeacherID:       claims.Subject,
			TargetLatitude:  req.TargetLatitude,
			TargetLongitude: req.TargetLongitude,
			RadiusMeters:    req.RadiusMeters,
			DetectionLevel:  req.DetectionLevel,
			AllowSkipGPS:    req.AllowSkipGPS,
			PINValidity:     validity,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sink.Record(c.Request.Context(), claims.Subject, "lesson.create", "lesson="+lesson.ID)
		c.JSON(http.StatusCreated, gin.H{
			"lesson":               lesson,
			"pin_validity_seconds": int(lesson.PINValidity.Seconds()),
		})
	})

	staff.POST("/lessons/:id/pin", func(c *gin.Context) {
		lessonID := c.Param("id")
		claims, _ := auth.FromContext(c)

		var req struct {
			ValiditySeconds int `json:"validity_seconds"`
		}
		_ = c.ShouldBindJSON(&req)
		validity := time.Duration(req.ValiditySeconds) * time.Second
		if validity <= 0 {
			validity = cfg.DefaultPINValidity
		}

		pin, err := checkin.GeneratePIN()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "pin generation failed"})
			return
		}
		expiresAt, err := repo.IssuePIN(c.Request.Context(), lessonID, pin, validity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sink.Record(c.Request.Context(), claims.Subject, "lesson.pin_issue", "lesson="+lessonID)
		c.JSON(http.StatusOK, gin.H{"pin": pin, "expires_at": expiresAt.Unix()})
	})

	staff.DELETE("/lessons/:id", func(c *gin.Context) {
		lessonID := c.Param("id")
		claims, _ := auth.FromContext(c)
		if err := repo.DeactivateLesson(c.Request.Context(), lessonID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		sink.Record(c.Request.Context(), claims.Subject, "lesson.deactivate", "lesson="+lessonID)
		c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
	})

	staff.GET("/lessons/:id/attendance", func(c *gin.Context) {
		limit, offset := 100, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		records, err := repo.ListAttendance(c.Request.Context(), c.Param("id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	authGroup.POST("/checkins", func(c *gin.Context) {
		var req struct {
			PIN            string `json:"pin" binding:"required"`
			SkipGPS        bool   `json:"skip_gps"`
			DeviceIdentity string `json:"device_identity"`
			Fingerprint    string `json:"fingerprint"`
			Readings       []struct {
				Latitude       float64 `json:"latitude"`
				Longitude      float64 `json:"longitude"`
				AccuracyMeters float64 `json:"accuracy_meters"`
				TimestampMs    int64   `json:"timestamp_ms"`
			} `json:"readings"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)

		readings := make([]location.Reading, 0, len(req.Readings))
		for _, rr := range req.Readings {
			readings = append(readings, location.Reading{
				Latitude:       rr.Latitude,
				Longitude:      rr.Longitude,
				AccuracyMeters: rr.AccuracyMeters,
				Timestamp:      time.UnixMilli(rr.TimestampMs),
			})
		}

		decision, err := svc.Do(c.Request.Context(), checkin.Attempt{
			PIN:            req.PIN,
			StudentID:      claims.Subject,
			Role:           claims.Role,
			SkipGPS:        req.SkipGPS,
			DeviceIdentity: req.DeviceIdentity,
			Fingerprint:    req.Fingerprint,
			UserAgent:      c.Request.UserAgent(),
			Source:         location.NewReplaySource(readings),
		})
		if err != nil {
			log.Printf("check-in failed for %s: %v", claims.Subject, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check-in failed"})
			return
		}

		metrics.CheckinDecisions.WithLabelValues(string(decision.Status)).Inc()
		for _, reason := range decision.MetricReasons() {
			metrics.SuspiciousReasons.WithLabelValues(reason).Inc()
		}
		if decision.Status != checkin.StatusRejected {
			metrics.CheckinDistance.Observe(decision.DistanceMeters)
		}

		c.JSON(http.StatusOK, decision)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
