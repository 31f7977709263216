package attendance

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"conductpoints/internal/model"
)

const uniqueViolation = "23505"

// Repository persists activities, registrations and attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetActivity returns the activity with its category name, or nil.
func (r *Repository) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT hd.id, hd.ten_hd, COALESCE(hd.mo_ta, ''), COALESCE(hd.dia_diem, ''),
		       hd.ngay_bd, hd.ngay_kt, hd.han_dk, hd.diem_rl::float8, hd.sl_toi_da,
		       hd.trang_thai, COALESCE(hd.qr, ''), COALESCE(hd.hoc_ky, ''), COALESCE(hd.nam_hoc, ''),
		       COALESCE(l.ten_loai_hd, '')
		FROM hoat_dong hd
		LEFT JOIN loai_hoat_dong l ON l.id = hd.loai_hd_id
		WHERE hd.id = $1
	`, id)
	var (
		a        model.Activity
		deadline sql.NullTime
		capacity sql.NullInt32
	)
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Location, &a.StartsAt, &a.EndsAt, &deadline,
		&a.Points, &capacity, &a.Status, &a.Token, &a.Semester, &a.Year, &a.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get activity")
	}
	if deadline.Valid {
		a.RegistrationDeadline = &deadline.Time
	}
	if capacity.Valid {
		c := int(capacity.Int32)
		a.Capacity = &c
	}
	return &a, nil
}

// SetActivityToken replaces the rotating QR token.
func (r *Repository) SetActivityToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE hoat_dong SET qr = $2, ngay_cap_nhat = NOW() WHERE id = $1`, id, token)
	return errors.Wrap(err, "set activity token")
}

// GetStudentProfile returns the student attached to a user account, or nil.
func (r *Repository) GetStudentProfile(ctx context.Context, userID string) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT sv.id, sv.nguoi_dung_id, sv.mssv, COALESCE(nd.ho_ten, ''), COALESCE(sv.lop_id, '')
		FROM sinh_vien sv
		LEFT JOIN nguoi_dung nd ON nd.id = sv.nguoi_dung_id
		WHERE sv.nguoi_dung_id = $1
	`, userID)
	var s model.Student
	if err := row.Scan(&s.ID, &s.UserID, &s.Code, &s.Name, &s.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get student profile")
	}
	return &s, nil
}

// GetRegistration returns the registration for (student, activity), or nil.
func (r *Repository) GetRegistration(ctx context.Context, studentID, activityID string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sv_id, hd_id, trang_thai_dk, ngay_dang_ky, ngay_duyet,
		       COALESCE(ly_do_tu_choi, ''), COALESCE(ghi_chu, '')
		FROM dang_ky_hoat_dong
		WHERE sv_id = $1 AND hd_id = $2
	`, studentID, activityID)
	var (
		reg      model.Registration
		approved sql.NullTime
	)
	if err := row.Scan(&reg.ID, &reg.StudentID, &reg.ActivityID, &reg.Status, &reg.RegisteredAt, &approved,
		&reg.RejectionReason, &reg.Note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get registration")
	}
	if approved.Valid {
		reg.ApprovedAt = &approved.Time
	}
	return &reg, nil
}

// SetRegistrationStatus updates a registration's status.
func (r *Repository) SetRegistrationStatus(ctx context.Context, id string, status model.RegistrationStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dang_ky_hoat_dong
		SET trang_thai_dk = $2, ngay_cap_nhat = NOW()
		WHERE id = $1 AND trang_thai_dk <> 'da_tham_gia'
	`, id, status)
	if err != nil {
		return errors.Wrap(err, "set registration status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("registration %s not updated", id)
	}
	return nil
}

const attendanceColumns = `id, sv_id, hd_id, nguoi_diem_danh_id, phuong_thuc, tg_diem_danh, COALESCE(dia_chi_ip, ''), xac_nhan_tham_gia`

func scanAttendance(row interface{ Scan(...any) error }) (model.Attendance, error) {
	var a model.Attendance
	err := row.Scan(&a.ID, &a.StudentID, &a.ActivityID, &a.RecordedBy, &a.Method, &a.When, &a.ClientIP, &a.Confirmed)
	return a, err
}

// GetAttendance returns the attendance for (student, activity), or nil.
func (r *Repository) GetAttendance(ctx context.Context, studentID, activityID string) (*model.Attendance, error) {
	a, err := scanAttendance(r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM diem_danh WHERE sv_id = $1 AND hd_id = $2`, studentID, activityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get attendance")
	}
	return &a, nil
}

// GetAttendanceByID returns a single attendance row, or nil.
func (r *Repository) GetAttendanceByID(ctx context.Context, id string) (*model.Attendance, error) {
	a, err := scanAttendance(r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM diem_danh WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get attendance by id")
	}
	return &a, nil
}

// CreateAttendanceIfAbsent inserts att unless the (student, activity) pair
// already has a row, in which case the existing row is returned together
// with ErrDuplicateAttendance.
func (r *Repository) CreateAttendanceIfAbsent(ctx context.Context, att model.Attendance) (model.Attendance, error) {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.When.IsZero() {
		att.When = time.Now()
	}
	if att.Method == "" {
		att.Method = model.MethodQR
	}
	created, err := scanAttendance(r.db.QueryRowContext(ctx, `
		INSERT INTO diem_danh (id, sv_id, hd_id, nguoi_diem_danh_id, phuong_thuc, trang_thai_tham_gia,
		                       tg_diem_danh, dia_chi_ip, xac_nhan_tham_gia)
		VALUES ($1, $2, $3, $4, $5, 'co_mat', $6, NULLIF($7, ''), $8)
		ON CONFLICT (sv_id, hd_id) DO NOTHING
		RETURNING `+attendanceColumns,
		att.ID, att.StudentID, att.ActivityID, att.RecordedBy, att.Method, att.When, att.ClientIP, att.Confirmed))
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		existing, gerr := r.GetAttendance(ctx, att.StudentID, att.ActivityID)
		if gerr != nil {
			return model.Attendance{}, gerr
		}
		if existing == nil {
			return model.Attendance{}, ErrDuplicateAttendance
		}
		return *existing, ErrDuplicateAttendance
	}
	return model.Attendance{}, errors.Wrap(err, "insert attendance")
}

// ListAttendance returns a student's attendance joined with activities, newest first.
func (r *Repository) ListAttendance(ctx context.Context, studentID string, limit int) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dd.id, hd.id, hd.ten_hd, COALESCE(l.ten_loai_hd, ''), hd.diem_rl::float8, dd.phuong_thuc, dd.tg_diem_danh
		FROM diem_danh dd
		JOIN hoat_dong hd ON hd.id = dd.hd_id
		LEFT JOIN loai_hoat_dong l ON l.id = hd.loai_hd_id
		WHERE dd.sv_id = $1
		ORDER BY dd.tg_diem_danh DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list attendance")
	}
	defer rows.Close()
	var res []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.AttendanceID, &e.ActivityID, &e.ActivityName, &e.Category, &e.Points, &e.Method, &e.When); err != nil {
			return nil, errors.Wrap(err, "scan attendance")
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
