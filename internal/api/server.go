package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/scholarseek/engine/internal/auth"
	"github.com/scholarseek/engine/internal/catalog"
	"github.com/scholarseek/engine/internal/db"
	"github.com/scholarseek/engine/internal/engine"
	"github.com/scholarseek/engine/internal/logger"
	"github.com/scholarseek/engine/internal/models"
	"github.com/scholarseek/engine/internal/radar"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Echo        *echo.Echo
	DB          *pgxpool.Pool
	Log         *zap.Logger

	// Per-user radar and ladder state, created lazily on first use.
	mu       sync.Mutex
	radars   map[uuid.UUID]*radar.Radar
	trackers map[uuid.UUID]*engine.LadderTracker
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, logger *zap.Logger) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		DB:          pool,
		Store:       db.NewStore(pool),
		AuthService: auth.NewService(pool),
		Echo:        e,
		Log:         logger,
		radars:      make(map[uuid.UUID]*radar.Radar),
		trackers:    make(map[uuid.UUID]*engine.LadderTracker),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/stats", s.handleGetStats)
	api.GET("/levels", s.handleGetLevels)

	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/seed", s.handleSeed)
	admin.POST("/import", s.handleImport)

	protected := api.Group("")
	protected.Use(auth.Middleware)

	protected.GET("/profile", s.handleGetProfile)
	protected.PUT("/profile", s.handleUpdateProfile)

	protected.GET("/saved", s.handleGetSaved)
	protected.POST("/saved/:id", s.handleSave)
	protected.DELETE("/saved/:id", s.handleUnsave)
	protected.DELETE("/saved", s.handleClearSaved)
	protected.GET("/saved/progression", s.handleProgression)
	protected.GET("/progression", s.handleProgression)

	protected.GET("/alerts", s.handleListAlerts)
	protected.POST("/alerts/:id/read", s.handleMarkAlertRead)
	protected.GET("/alerts/settings", s.handleGetAlertSettings)
	protected.PUT("/alerts/settings", s.handleUpdateAlertSettings)
	protected.GET("/alerts/stats", s.handleAlertStats)
	protected.POST("/alerts/scan", s.handleScanNow)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Auth

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err == auth.ErrUserExists {
		return c.JSON(http.StatusConflict, map[string]string{"error": "User already exists"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Signup failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err == auth.ErrInvalidCreds {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Login failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Catalog

// opportunityView decorates an opportunity with the derived fields the
// discovery screens render next to it.
type opportunityView struct {
	models.Opportunity
	EffortScore   int            `json:"effort_score"`
	Urgency       models.Urgency `json:"urgency"`
	IsUrgent      bool           `json:"is_urgent"`
	CategoryStyle engine.Style   `json:"category_style"`
	UrgencyStyle  engine.Style   `json:"urgency_style"`
}

func viewOf(opp models.Opportunity, now time.Time) opportunityView {
	urgency := engine.UrgencyFor(opp.Deadline, now)
	return opportunityView{
		Opportunity:   opp,
		EffortScore:   engine.DisplayEffortScore(opp.Requirements),
		Urgency:       urgency,
		IsUrgent:      engine.IsUrgent(opp.Deadline, now),
		CategoryStyle: engine.CategoryStyle(opp.Category),
		UrgencyStyle:  engine.UrgencyStyle(urgency),
	}
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	criteria := criteriaFromQuery(c)
	activeOnly := c.QueryParam("include_expired") != "true"

	opps, err := s.Store.ListOpportunities(c.Request().Context(), activeOnly)
	if err != nil {
		s.Log.Error("listing opportunities", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list opportunities"})
	}

	now := time.Now().UTC()
	filtered := engine.Filter(opps, criteria, now)

	views := make([]opportunityView, 0, len(filtered))
	for _, opp := range filtered {
		views = append(views, viewOf(opp, now))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"opportunities": views,
		"total":         len(views),
	})
}

func criteriaFromQuery(c echo.Context) engine.Criteria {
	criteria := engine.Criteria{
		SearchText:        c.QueryParam("q"),
		GPABucket:         c.QueryParam("gpa"),
		Country:           c.QueryParam("country"),
		EducationLevel:    c.QueryParam("education"),
		DeadlineThisMonth: c.QueryParam("deadline_this_month") == "true",
		NoEssay:           c.QueryParam("no_essay") == "true",
		HighAmount:        c.QueryParam("high_amount") == "true",
		SortBy:            engine.SortKey(c.QueryParam("sort")),
	}

	for _, raw := range splitCSV(c.QueryParam("categories")) {
		criteria.Categories = append(criteria.Categories, models.Category(raw))
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_amount"), 64); err == nil {
		criteria.MinAmount = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_amount"), 64); err == nil {
		criteria.MaxAmount = v
	}
	return criteria
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}

	opp, err := s.Store.GetOpportunity(c.Request().Context(), id)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Opportunity not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch opportunity"})
	}

	return c.JSON(http.StatusOK, viewOf(*opp, time.Now().UTC()))
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetLevels(c echo.Context) error {
	return c.JSON(http.StatusOK, engine.Levels())
}

// Profile

func (s *Server) handleGetProfile(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	profile, err := s.Store.GetProfile(c.Request().Context(), userID)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusOK, models.UserProfile{UserID: userID})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch profile"})
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var profile models.UserProfile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid profile"})
	}
	profile.UserID = userID

	if err := s.Store.UpsertProfile(c.Request().Context(), profile); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save profile"})
	}

	// A hosted radar keeps its own snapshot; push the edit through.
	if r := s.existingRadar(userID); r != nil {
		r.UpdateProfile(profile)
	}
	return c.JSON(http.StatusOK, profile)
}

// Saved opportunities and progression

func (s *Server) handleSave(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	oppID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}

	if err := s.Store.SaveOpportunity(c.Request().Context(), userID, oppID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save opportunity"})
	}
	return s.handleProgression(c)
}

func (s *Server) handleUnsave(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	oppID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}

	if err := s.Store.UnsaveOpportunity(c.Request().Context(), userID, oppID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to unsave opportunity"})
	}
	return s.handleProgression(c)
}

func (s *Server) handleClearSaved(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	if err := s.Store.ClearSaved(c.Request().Context(), userID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to clear saved opportunities"})
	}
	return s.handleProgression(c)
}

func (s *Server) handleGetSaved(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	opps, err := s.Store.GetSavedOpportunities(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch saved opportunities"})
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}

	now := time.Now().UTC()
	views := make([]opportunityView, 0, len(opps))
	for _, opp := range opps {
		views = append(views, viewOf(opp, now))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleProgression(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	count, err := s.Store.CountSaved(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to count saved opportunities"})
	}

	display := s.ladderTracker(userID).Observe(count)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"saved_count": count,
		"ladder":      display,
	})
}

func (s *Server) ladderTracker(userID uuid.UUID) *engine.LadderTracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[userID]
	if !ok {
		userLog := logger.WithUser(s.Log, userID.String())
		t = engine.NewLadderTracker(func(completed engine.Level) {
			userLog.Info("level completed",
				zap.String("level", completed.Name),
				zap.String("emoji", completed.Emoji))
		})
		s.trackers[userID] = t
	}
	return t
}

// Alerts

func (s *Server) existingRadar(userID uuid.UUID) *radar.Radar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radars[userID]
}

// userRadar returns the radar for a user, creating and priming it from
// stored settings on first use.
func (s *Server) userRadar(c echo.Context, userID uuid.UUID) (*radar.Radar, error) {
	s.mu.Lock()
	if r, ok := s.radars[userID]; ok {
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	ctx := c.Request().Context()
	settings, err := s.Store.GetAlertSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading alert settings: %w", err)
	}

	provider := radar.CatalogProviderFunc(s.Store.ActiveOpportunities)
	sink := radar.MultiSink{
		&radar.LogSink{Logger: logger.WithUser(s.Log, userID.String())},
		db.NewAlertSink(s.Store, userID),
	}
	r := radar.New(provider, sink, s.Log)
	r.UpdateSettings(settings)
	if profile, err := s.Store.GetProfile(ctx, userID); err == nil {
		r.UpdateProfile(*profile)
	}
	// No alerts for opportunities the user already saved themselves.
	if saved, err := s.Store.GetSavedIDs(ctx, userID); err == nil {
		r.SeedSeen(saved)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.radars[userID]; ok {
		return existing, nil
	}
	s.radars[userID] = r
	return r, nil
}

func (s *Server) handleGetAlertSettings(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	settings, err := s.Store.GetAlertSettings(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch alert settings"})
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleUpdateAlertSettings(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var settings models.AlertSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid settings"})
	}

	if err := s.Store.UpsertAlertSettings(c.Request().Context(), userID, settings); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save alert settings"})
	}

	// Edits take effect on the radar's next scan, never mid-scan.
	if r := s.existingRadar(userID); r != nil {
		r.UpdateSettings(settings)
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleListAlerts(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	alerts, err := s.Store.ListAlerts(c.Request().Context(), userID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch alerts"})
	}

	views := make([]alertView, 0, len(alerts))
	for _, alert := range alerts {
		tier := engine.TierFor(alert.MatchPercent)
		views = append(views, alertView{
			Alert:           alert,
			Tier:            tier,
			TierDescription: engine.TierDescription(tier),
		})
	}
	return c.JSON(http.StatusOK, views)
}

// alertView decorates a stored alert with its match tier for rendering.
type alertView struct {
	models.Alert
	Tier            engine.MatchTier `json:"tier"`
	TierDescription string           `json:"tier_description"`
}

func (s *Server) handleMarkAlertRead(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert ID"})
	}

	err = s.Store.MarkAlertRead(c.Request().Context(), userID, alertID)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark alert read"})
	}

	if r := s.existingRadar(userID); r != nil {
		r.MarkRead(alertID)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleAlertStats(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	r, err := s.userRadar(c, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build radar"})
	}
	return c.JSON(http.StatusOK, r.Stats())
}

func (s *Server) handleScanNow(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	r, err := s.userRadar(c, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build radar"})
	}

	result, err := r.ScanOnce(c.Request().Context())
	if errors.Is(err, radar.ErrScanInFlight) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Scan already in progress"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Scan failed"})
	}
	return c.JSON(http.StatusOK, result)
}

// Admin

func (s *Server) handleSeed(c echo.Context) error {
	count, err := catalog.Seed(c.Request().Context(), s.Store)
	if err != nil {
		s.Log.Error("seeding catalog", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Seed failed"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Seed complete",
		"count":   count,
	})
}

func (s *Server) handleImport(c echo.Context) error {
	stats, err := catalog.Import(c.Request().Context(), s.Store, c.Request().Body)
	if err != nil {
		s.Log.Error("importing catalog", zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Import failed"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"imported": stats.Imported,
		"skipped":  stats.Skipped,
	})
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}
	return adminSecretRuntime, nil
}
