package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"conductpoints/internal/attendance"
	"conductpoints/internal/auth"
	"conductpoints/internal/metrics"
	"conductpoints/internal/model"
	"conductpoints/internal/points"
)

// AttendanceService is the attendance core as used over HTTP.
type AttendanceService interface {
	RecordAttendance(ctx context.Context, req attendance.ScanRequest) (attendance.ScanResult, error)
	RotateToken(ctx context.Context, claimant auth.Claimant, activityID string) (attendance.Payload, error)
	QRPayload(ctx context.Context, claimant auth.Claimant, activityID string) (attendance.Payload, error)
	History(ctx context.Context, claimant auth.Claimant, limit int) ([]attendance.HistoryEntry, error)
}

// PointsService is the points aggregator as used over HTTP.
type PointsService interface {
	ComputePoints(ctx context.Context, userID string, w points.Window) (points.Summary, error)
	ListActivities(ctx context.Context, userID string, f points.Filter) (points.ActivityList, error)
	Standing(ctx context.Context, userID string, w points.Window) (points.Standing, error)
	Report(ctx context.Context, userID, year string) (*points.Report, error)
}

// Checker reports dependency health for /healthz.
type Checker interface {
	Healthy(ctx context.Context) bool
}

type Handler struct {
	attendance AttendanceService
	points     PointsService
	checks     map[string]Checker
	log        logrus.FieldLogger
}

func New(att AttendanceService, pts PointsService, checks map[string]Checker, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{attendance: att, points: pts, checks: checks, log: log}
}

// Register mounts the authenticated API on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/attendance/scan", h.Scan)
	r.GET("/attendance/history", h.History)
	r.GET("/activities/:id/qr", h.GetQR)
	r.POST("/activities/:id/qr", h.RotateQR)
	r.GET("/points", h.Points)
	r.GET("/points/standing", h.Standing)
	r.GET("/points/report", h.Report)
	r.GET("/my-activities", h.MyActivities)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, chk := range h.checks {
		healthy := chk != nil && chk.Healthy(c.Request.Context())
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Attendance ----------

type scanRequest struct {
	QRCode string `json:"qrCode" binding:"required"`
}

// Scan records attendance from a scanned QR payload.
func (h *Handler) Scan(c *gin.Context) {
	claimant, ok := h.claimant(c)
	if !ok {
		return
	}
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ScanOutcomes.WithLabelValues(attendance.KindMalformedInput.String()).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu mã QR", "kind": attendance.KindMalformedInput.String()})
		return
	}

	res, err := h.attendance.RecordAttendance(c.Request.Context(), attendance.ScanRequest{
		Payload:  req.QRCode,
		Claimant: claimant,
		ClientIP: clientIP(c),
	})
	if err != nil {
		metrics.ScanOutcomes.WithLabelValues(attendance.KindOf(err).String()).Inc()
		h.attendanceError(c, err)
		return
	}
	metrics.ScanOutcomes.WithLabelValues("recorded").Inc()
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) History(c *gin.Context) {
	claimant, ok := h.claimant(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.attendance.History(c.Request.Context(), claimant, limit)
	if err != nil {
		h.attendanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": entries})
}

func (h *Handler) GetQR(c *gin.Context) {
	h.qr(c, h.attendance.QRPayload)
}

func (h *Handler) RotateQR(c *gin.Context) {
	h.qr(c, h.attendance.RotateToken)
}

func (h *Handler) qr(c *gin.Context, fn func(context.Context, auth.Claimant, string) (attendance.Payload, error)) {
	claimant, ok := h.claimant(c)
	if !ok {
		return
	}
	p, err := fn(c.Request.Context(), claimant, c.Param("id"))
	if err != nil {
		h.attendanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity_id": p.ActivityID, "qr_payload": p.Encode()})
}

func (h *Handler) attendanceError(c *gin.Context, err error) {
	var e *attendance.Error
	if !errors.As(err, &e) || e.Kind == attendance.KindUnexpected {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("attendance request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi hệ thống, vui lòng thử lại sau"})
		return
	}
	body := gin.H{"error": e.Message, "kind": e.Kind.String()}
	if !e.AttendedAt.IsZero() {
		body["attended_at"] = e.AttendedAt
	}
	c.JSON(e.Kind.HTTPStatus(), body)
}

// ---------- Points ----------

func window(c *gin.Context) points.Window {
	return points.Window{Semester: c.Query("semester"), Year: c.Query("year")}
}

func (h *Handler) Points(c *gin.Context) {
	claimant, ok := h.claimant(c)
	if !ok {
		return
	}
	sum, err := h.points.ComputePoints(c.Request.Context(), claimant.UserID, window(c))
	if err != nil {
		h.pointsError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) MyActivities(c *gin.Context) {
	claimant, ok := h.claimant(c)
	if !ok {
		return
	}
	status := model.RegistrationStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Trạng thái không hợp lệ"})
		return
	}
	list, err := h.points.ListActivities(c.Request.Context(), claimant.UserID, points.Filter{Window: window(c), Status: status})
	if err != nil {
		h.pointsError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Standing(c *gin.Context) {
	claimant, ok := h.claimant(c)
	if !ok {
		return
	}
	st, err := h.points.Standing(c.Request.Context(), claimant.UserID, window(c))
	if err != nil {
		h.pointsError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Report(c *gin.Context) {
	claimant, ok := h.claimant(c)
	if !ok {
		return
	}
	rep, err := h.points.Report(c.Request.Context(), claimant.UserID, c.Query("year"))
	if err != nil {
		h.pointsError(c, err)
		return
	}
	if rep == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy thông tin sinh viên"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) pointsError(c *gin.Context, err error) {
	h.log.WithError(err).WithField("path", c.FullPath()).Error("points lookup failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi hệ thống, vui lòng thử lại sau"})
}

// ---------- Helpers ----------

func (h *Handler) claimant(c *gin.Context) (auth.Claimant, bool) {
	claimant, ok := auth.ClaimantFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
	}
	return claimant, ok
}

// clientIP prefers the first X-Forwarded-For hop.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return c.ClientIP()
}
