package sandbox

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/chartview/chartview/internal/platform/fhir"
)

// Options configures the sandbox upstream.
type Options struct {
	// Key signs the HMAC access tokens. Required.
	Key string
	// Users maps login usernames to passwords. Empty gets one demo user.
	Users map[string]string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// PatientCount and Seed control the generated dataset.
	PatientCount int
	Seed         int64

	Logger zerolog.Logger
}

// Server holds the sandbox state: generated patients and the live refresh
// tokens. Refresh tokens rotate on every use; the replaced one dies
// immediately, the rest age out of the cache on the refresh TTL.
type Server struct {
	opts Options
	key  []byte
	log  zerolog.Logger

	mu       sync.RWMutex
	patients []map[string]interface{}
	index    map[string]int

	refresh *ttlcache.Cache[string, string]
}

const tokenIssuer = "chartview-sandbox"

func New(opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.PatientCount <= 0 {
		opts.PatientCount = 25
	}
	if len(opts.Users) == 0 {
		opts.Users = map[string]string{"demo": "demo1234"}
	}
	if opts.Key == "" {
		// Ephemeral key: fine for a sandbox, tokens just die with the process.
		opts.Key = uuid.NewString()
	}

	patients := NewGenerator(opts.Seed).Patients(opts.PatientCount)
	index := make(map[string]int, len(patients))
	for i, p := range patients {
		index[p["id"].(string)] = i
	}

	refresh := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](opts.RefreshTTL),
	)
	go refresh.Start()

	return &Server{
		opts:     opts,
		key:      []byte(opts.Key),
		log:      opts.Logger,
		patients: patients,
		index:    index,
		refresh:  refresh,
	}
}

// Close stops the refresh-token cache's expiry loop.
func (s *Server) Close() {
	s.refresh.Stop()
}

func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/oauth2/token", s.Token)
	e.GET("/Patient", s.ListPatients)
	e.GET("/Patient/:id", s.GetPatient)
	e.PUT("/Patient/:id", s.UpdatePatient)
}

// Token is the OAuth2 token endpoint. It speaks the password and
// refresh_token grants with form-encoded bodies.
func (s *Server) Token(c echo.Context) error {
	switch c.FormValue("grant_type") {
	case "password":
		username := c.FormValue("username")
		password, ok := s.opts.Users[username]
		if !ok || password == "" || password != c.FormValue("password") {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "invalid_grant",
				"error_description": "Invalid username or password",
			})
		}
		return s.issueTokens(c, username)

	case "refresh_token":
		item := s.refresh.Get(c.FormValue("refresh_token"))
		if item == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "invalid_grant",
				"error_description": "Refresh token is expired or revoked",
			})
		}
		// Rotation: the presented token is spent whether or not the new
		// pair ever reaches the caller.
		s.refresh.Delete(item.Key())
		return s.issueTokens(c, item.Value())

	default:
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "unsupported_grant_type",
			"error_description": "grant_type must be password or refresh_token",
		})
	}
}

func (s *Server) issueTokens(c echo.Context, username string) error {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": tokenIssuer,
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(s.opts.AccessTTL).Unix(),
		"jti": uuid.NewString(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		s.log.Error().Err(err).Msg("sign access token")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server_error"})
	}

	refreshToken := uuid.NewString()
	s.refresh.Set(refreshToken, username, ttlcache.DefaultTTL)

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(s.opts.AccessTTL.Seconds()),
		"scope":         "patient/*.read patient/*.write",
	})
}

// authenticate verifies the bearer token and returns its subject.
func (s *Server) authenticate(c echo.Context) (string, error) {
	auth := c.Request().Header.Get("Authorization")
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || raw == "" {
		return "", fmt.Errorf("missing bearer token")
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", err
	}
	return tok.Claims.GetSubject()
}

func (s *Server) unauthorized(c echo.Context) error {
	c.Response().Header().Set("WWW-Authenticate", `Bearer realm="sandbox"`)
	return c.JSON(http.StatusUnauthorized,
		fhir.NewOperationOutcome("login", "Access token is missing or invalid"))
}

// ListPatients serves a searchset bundle page. Paging state travels in the
// bundle links, the way the gateway expects from a real EHR.
func (s *Server) ListPatients(c echo.Context) error {
	if _, err := s.authenticate(c); err != nil {
		return s.unauthorized(c)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	count, _ := strconv.Atoi(c.QueryParam("_count"))
	if count < 1 {
		count = 10
	}
	if count > 100 {
		count = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.patients)
	start := (page - 1) * count
	end := start + count
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	pageURL := func(p int) string {
		return fmt.Sprintf("/Patient?page=%d&_count=%d", p, count)
	}
	links := []map[string]interface{}{
		{"relation": "self", "url": pageURL(page)},
	}
	if end < total {
		links = append(links, map[string]interface{}{"relation": "next", "url": pageURL(page + 1)})
	}
	if page > 1 {
		links = append(links, map[string]interface{}{"relation": "previous", "url": pageURL(page - 1)})
	}

	entries := make([]map[string]interface{}, 0, end-start)
	for _, p := range s.patients[start:end] {
		entries = append(entries, map[string]interface{}{
			"fullUrl":  "Patient/" + p["id"].(string),
			"resource": p,
			"search":   map[string]interface{}{"mode": "match"},
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"resourceType": "Bundle",
		"type":         "searchset",
		"total":        total,
		"link":         links,
		"entry":        entries,
	})
}

func (s *Server) GetPatient(c echo.Context) error {
	if _, err := s.authenticate(c); err != nil {
		return s.unauthorized(c)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, s.notKnown(c.Param("id")))
	}
	return c.JSON(http.StatusOK, s.patients[i])
}

// UpdatePatient replaces a stored patient document, bumping its version the
// way a real server would.
func (s *Server) UpdatePatient(c echo.Context) error {
	if _, err := s.authenticate(c); err != nil {
		return s.unauthorized(c)
	}

	var doc map[string]interface{}
	if err := c.Bind(&doc); err != nil {
		return c.JSON(http.StatusBadRequest,
			fhir.NewOperationOutcome("invalid", "Request body is not a valid resource"))
	}

	id := c.Param("id")
	if docID, _ := doc["id"].(string); docID != id {
		return c.JSON(http.StatusBadRequest,
			fhir.NewOperationOutcome("invalid", "Resource id does not match request URL"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return c.JSON(http.StatusNotFound, s.notKnown(id))
	}

	version := 1
	if prev, ok := s.patients[i]["meta"].(map[string]interface{}); ok {
		if v, _ := prev["versionId"].(string); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				version = n + 1
			}
		}
	}
	doc["meta"] = map[string]interface{}{
		"versionId":   strconv.Itoa(version),
		"lastUpdated": time.Now().UTC().Format(time.RFC3339),
	}

	s.patients[i] = doc
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) notKnown(id string) *fhir.OperationOutcome {
	return fhir.NewOperationOutcome("not-found", "Patient "+id+" is not known")
}
