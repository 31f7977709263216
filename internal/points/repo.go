package points

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"conductpoints/internal/model"
)

// Repository reads registrations and activities from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
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

// ListParticipations joins every registration of the student with its
// activity, category and attendance presence. Points are read from the
// activity as it is now.
func (r *Repository) ListParticipations(ctx context.Context, studentID string) ([]Participation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dk.id, dk.sv_id, dk.hd_id, dk.trang_thai_dk, dk.ngay_dang_ky, dk.ngay_duyet,
		       COALESCE(dk.ly_do_tu_choi, ''), COALESCE(dk.ghi_chu, ''),
		       hd.id, hd.ten_hd, COALESCE(hd.mo_ta, ''), COALESCE(hd.dia_diem, ''),
		       hd.ngay_bd, hd.ngay_kt, hd.han_dk, hd.diem_rl::float8, hd.trang_thai,
		       COALESCE(hd.hoc_ky, ''), COALESCE(hd.nam_hoc, ''), COALESCE(l.ten_loai_hd, ''),
		       EXISTS (SELECT 1 FROM diem_danh dd WHERE dd.sv_id = dk.sv_id AND dd.hd_id = dk.hd_id)
		FROM dang_ky_hoat_dong dk
		JOIN hoat_dong hd ON hd.id = dk.hd_id
		LEFT JOIN loai_hoat_dong l ON l.id = hd.loai_hd_id
		WHERE dk.sv_id = $1
		ORDER BY dk.ngay_dang_ky DESC, dk.id
	`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "list participations")
	}
	defer rows.Close()

	var res []Participation
	for rows.Next() {
		var (
			p        Participation
			approved sql.NullTime
			deadline sql.NullTime
		)
		reg, act := &p.Registration, &p.Activity
		if err := rows.Scan(&reg.ID, &reg.StudentID, &reg.ActivityID, &reg.Status, &reg.RegisteredAt, &approved,
			&reg.RejectionReason, &reg.Note,
			&act.ID, &act.Name, &act.Description, &act.Location,
			&act.StartsAt, &act.EndsAt, &deadline, &act.Points, &act.Status,
			&act.Semester, &act.Year, &act.Category,
			&p.Attended); err != nil {
			return nil, errors.Wrap(err, "scan participation")
		}
		if approved.Valid {
			reg.ApprovedAt = &approved.Time
		}
		if deadline.Valid {
			act.RegistrationDeadline = &deadline.Time
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ClassTotals sums completed points for every student of the class in w.
func (r *Repository) ClassTotals(ctx context.Context, classID string, w Window) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sv.id, COALESCE(SUM(hd.diem_rl), 0)::float8, COUNT(hd.id)
		FROM sinh_vien sv
		LEFT JOIN dang_ky_hoat_dong dk
		       ON dk.sv_id = sv.id
		      AND (dk.trang_thai_dk = 'da_tham_gia'
		           OR EXISTS (SELECT 1 FROM diem_danh dd WHERE dd.sv_id = dk.sv_id AND dd.hd_id = dk.hd_id))
		LEFT JOIN hoat_dong hd
		       ON hd.id = dk.hd_id
		      AND ($2::text = '' OR hd.hoc_ky = $2::text)
		      AND ($3::text = '' OR hd.nam_hoc = $3::text)
		WHERE sv.lop_id = $1
		GROUP BY sv.id
		ORDER BY sv.id
	`, classID, w.Semester, w.Year)
	if err != nil {
		return nil, errors.Wrap(err, "class totals")
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.StudentID, &e.Total, &e.Activities); err != nil {
			return nil, errors.Wrap(err, "scan class total")
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
