package portal

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthguard/portal/internal/domain/consent"
	"github.com/healthguard/portal/internal/domain/records"
	"github.com/healthguard/portal/internal/platform/auth"
	"github.com/healthguard/portal/internal/platform/live"
	"github.com/healthguard/portal/pkg/pagination"
)

type Handler struct {
	registry  *Registry
	jwt       auth.JWTConfig
	maxUpload int64
	events    *live.Handler
	logger    zerolog.Logger
}

// NewHandler creates the portal API handler. events may be nil, in which case
// the live event stream is not served.
func NewHandler(registry *Registry, jwt auth.JWTConfig, maxUpload int64, events *live.Handler, logger zerolog.Logger) *Handler {
	return &Handler{registry: registry, jwt: jwt, maxUpload: maxUpload, events: events, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/login", h.Login)

	// Patient endpoints – only the patient themself
	p := api.Group("/patients/:patientId",
		auth.RequireRole(auth.RolePatient), auth.RequireSubject("patientId"))
	p.GET("/profile", h.GetProfile)
	p.GET("/records", h.ListRecords)
	p.POST("/records", h.CreateRecord)
	p.POST("/records/analyze", h.AnalyzeRecord)
	p.POST("/records/upload", h.UploadRecord)
	p.GET("/grants", h.ListGrants)
	p.POST("/grants", h.IssueGrant)
	p.DELETE("/grants", h.RevokeAllGrants)
	p.DELETE("/grants/:id", h.RevokeGrant)
	p.GET("/audit", h.ListAudit)
	p.GET("/emergency-brief", h.GetEmergencyBrief)
	p.POST("/chats", h.StartChat)
	p.POST("/chats/:chatId/messages", h.SendChatMessage)
	p.DELETE("/chats/:chatId", h.CloseChat)
	if h.events != nil {
		p.GET("/events", h.StreamEvents)
	}

	// Doctor endpoints
	d := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	d.GET("/patients", h.ListSharedPatients)
	d.GET("/patients/:patientId", h.ViewPatient)
}

// -- Login --

type loginRequest struct {
	Role string `json:"role"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Identity  auth.Identity `json:"identity"`
}

// Login issues a token for the demo patient or doctor. There is no
// credential check.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var id auth.Identity
	switch strings.ToLower(strings.TrimSpace(req.Role)) {
	case auth.RolePatient:
		profile := DemoProfile()
		id = auth.Identity{Subject: profile.ID, Name: profile.Name, Role: auth.RolePatient}
	case auth.RoleDoctor:
		id = auth.Identity{Subject: DemoDoctor, Name: DemoDoctor, Role: auth.RoleDoctor}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, `role must be "patient" or "doctor"`)
	}

	token, exp, err := auth.IssueToken(h.jwt, id, time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info().Str("role", id.Role).Str("subject", id.Subject).Msg("login")
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, Identity: id})
}

func (h *Handler) session(c echo.Context) (*Session, error) {
	s, ok := h.registry.Session(c.Param("patientId"))
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return s, nil
}

// -- Profile & records --

func (h *Handler) GetProfile(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Profile())
}

func (h *Handler) ListRecords(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.Page(s.SearchRecords(c.QueryParam("q")), pg))
}

func (h *Handler) CreateRecord(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var rec records.MedicalRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec.ID = ""
	if strings.TrimSpace(rec.Summary) == "" {
		rec.Summary = records.DefaultSummary
	}
	if rec.Insights == nil {
		rec.Insights = []string{}
	}
	created, err := s.AddRecord(c.Request().Context(), rec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type ingestResponse struct {
	Created bool                   `json:"created"`
	Record  *records.MedicalRecord `json:"record,omitempty"`
}

func ingestResult(c echo.Context, rec records.MedicalRecord, ok bool, err error) error {
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return c.JSON(http.StatusOK, ingestResponse{Created: false})
	}
	return c.JSON(http.StatusCreated, ingestResponse{Created: true, Record: &rec})
}

func (h *Handler) AnalyzeRecord(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	rec, ok, err := s.IngestText(c.Request().Context(), req.Text)
	return ingestResult(c, rec, ok, err)
}

func (h *Handler) UploadRecord(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mimeType := fh.Header.Get(echo.HeaderContentType)
	if mimeType == "" || mimeType == echo.MIMEOctetStream {
		mimeType = http.DetectContentType(data)
	}

	rec, ok, err := s.IngestImage(c.Request().Context(), fh.Filename, data, mimeType)
	return ingestResult(c, rec, ok, err)
}

// -- Grants --

type grantRequest struct {
	DoctorName     string `json:"doctor_name"`
	Specialization string `json:"specialization"`
	Facility       string `json:"facility"`
	ExpiryDate     string `json:"expiry_date"`
	Mode           string `json:"mode"`
}

func (r grantRequest) toDomain() (consent.GrantRequest, error) {
	req := consent.GrantRequest{
		DoctorName:     r.DoctorName,
		Specialization: r.Specialization,
		Facility:       r.Facility,
	}
	if mode, err := consent.ParseAccessMode(r.Mode); err == nil {
		req.Mode = mode
	} else {
		// Left for the store to reject.
		req.Mode = consent.AccessMode(strings.TrimSpace(r.Mode))
	}
	if r.ExpiryDate != "" {
		t, err := time.Parse(consent.DateLayout, r.ExpiryDate)
		if err != nil {
			return req, errors.New("expiry_date must be YYYY-MM-DD")
		}
		req.ExpiryDate = t
	}
	return req, nil
}

func (h *Handler) ListGrants(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Grants())
}

func (h *Handler) IssueGrant(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var body grantRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := body.toDomain()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g, err := s.IssueGrant(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, consent.ErrInvalidGrant) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) RevokeGrant(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	ok, err := s.RevokeGrant(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "grant not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeAllGrants(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	n, err := s.RevokeAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"revoked": n})
}

// -- Audit --

func (h *Handler) ListAudit(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	page, err := pagination.PageErr(s.SearchAudit(c.Request().Context(), c.QueryParam("q")), pg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page)
}

// -- Assistant --

func (h *Handler) GetEmergencyBrief(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"brief": s.EmergencyBrief(c.Request().Context())})
}

func (h *Handler) StartChat(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	id, greeting := s.StartChat(c.Request().Context())
	return c.JSON(http.StatusCreated, map[string]string{"chat_id": id, "greeting": greeting})
}

type chatMessage struct {
	Text string `json:"text"`
}

func (h *Handler) SendChatMessage(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var msg chatMessage
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(msg.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	reply, err := s.SendChat(c.Request().Context(), c.Param("chatId"), msg.Text)
	if errors.Is(err, ErrChatNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) CloseChat(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if !s.CloseChat(c.Param("chatId")) {
		return echo.NewHTTPError(http.StatusNotFound, ErrChatNotFound.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// StreamEvents upgrades to a WebSocket that carries the patient's committed
// changes as they happen.
func (h *Handler) StreamEvents(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return h.events.Serve(c, live.PatientTopic(s.PatientID()))
}

// -- Doctor workspace --

func (h *Handler) ListSharedPatients(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())
	return c.JSON(http.StatusOK, h.registry.SharedWith(id.Name))
}

func (h *Handler) ViewPatient(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())
	s, err := h.session(c)
	if err != nil {
		return err
	}
	proj, err := s.DoctorView(c.Request().Context(), id.Name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !proj.Permitted() {
		return c.JSON(http.StatusForbidden, proj)
	}
	return c.JSON(http.StatusOK, proj)
}
