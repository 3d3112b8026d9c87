package storage

import (
	"context"

	"archsite/internal/content"
)

// Awards, team members and services are small ordered lists edited by hand.

const awardCols = `id, title_en, title_ar, issuer_en, issuer_ar, year, project_slug, image_url, sort_order`

func scanAward(row scanner) (*content.Award, error) {
	var a content.Award
	err := row.Scan(&a.ID, &a.Title.En, &a.Title.Ar, &a.Issuer.En, &a.Issuer.Ar, &a.Year,
		&a.ProjectSlug, &a.ImageURL, &a.SortOrder)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (s *Store) ListAwards(ctx context.Context) ([]content.Award, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+awardCols+" FROM awards ORDER BY sort_order, year DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []content.Award{}
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) GetAward(ctx context.Context, id int64) (*content.Award, error) {
	return scanAward(s.db.QueryRowContext(ctx, "SELECT "+awardCols+" FROM awards WHERE id = ?", id))
}

func (s *Store) CreateAward(ctx context.Context, a *content.Award) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO awards(title_en, title_ar, issuer_en, issuer_ar, year,
		project_slug, image_url, sort_order) VALUES(?,?,?,?,?,?,?,?)`,
		a.Title.En, a.Title.Ar, a.Issuer.En, a.Issuer.Ar, a.Year, a.ProjectSlug, a.ImageURL, a.SortOrder)
	if err != nil {
		return mapErr(err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateAward(ctx context.Context, a *content.Award) error {
	return mustAffect(s.db.ExecContext(ctx, `UPDATE awards SET title_en=?, title_ar=?, issuer_en=?,
		issuer_ar=?, year=?, project_slug=?, image_url=?, sort_order=? WHERE id=?`,
		a.Title.En, a.Title.Ar, a.Issuer.En, a.Issuer.Ar, a.Year, a.ProjectSlug, a.ImageURL, a.SortOrder, a.ID))
}

func (s *Store) DeleteAward(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, "DELETE FROM awards WHERE id = ?", id))
}

const teamCols = `id, name_en, name_ar, role_en, role_ar, bio_en, bio_ar, photo_url, sort_order`

func scanTeamMember(row scanner) (*content.TeamMember, error) {
	var m content.TeamMember
	err := row.Scan(&m.ID, &m.Name.En, &m.Name.Ar, &m.Role.En, &m.Role.Ar, &m.Bio.En, &m.Bio.Ar,
		&m.PhotoURL, &m.SortOrder)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *Store) ListTeam(ctx context.Context) ([]content.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+teamCols+" FROM team_members ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []content.TeamMember{}
	for rows.Next() {
		m, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) GetTeamMember(ctx context.Context, id int64) (*content.TeamMember, error) {
	return scanTeamMember(s.db.QueryRowContext(ctx, "SELECT "+teamCols+" FROM team_members WHERE id = ?", id))
}

func (s *Store) CreateTeamMember(ctx context.Context, m *content.TeamMember) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO team_members(name_en, name_ar, role_en, role_ar,
		bio_en, bio_ar, photo_url, sort_order) VALUES(?,?,?,?,?,?,?,?)`,
		m.Name.En, m.Name.Ar, m.Role.En, m.Role.Ar, m.Bio.En, m.Bio.Ar, m.PhotoURL, m.SortOrder)
	if err != nil {
		return mapErr(err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateTeamMember(ctx context.Context, m *content.TeamMember) error {
	return mustAffect(s.db.ExecContext(ctx, `UPDATE team_members SET name_en=?, name_ar=?, role_en=?,
		role_ar=?, bio_en=?, bio_ar=?, photo_url=?, sort_order=? WHERE id=?`,
		m.Name.En, m.Name.Ar, m.Role.En, m.Role.Ar, m.Bio.En, m.Bio.Ar, m.PhotoURL, m.SortOrder, m.ID))
}

func (s *Store) DeleteTeamMember(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, "DELETE FROM team_members WHERE id = ?", id))
}

const serviceCols = `id, slug, title_en, title_ar, summary_en, summary_ar, icon, sort_order`

func scanService(row scanner) (*content.Service, error) {
	var v content.Service
	err := row.Scan(&v.ID, &v.Slug, &v.Title.En, &v.Title.Ar, &v.Summary.En, &v.Summary.Ar, &v.Icon, &v.SortOrder)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) ListServices(ctx context.Context) ([]content.Service, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+serviceCols+" FROM services ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []content.Service{}
	for rows.Next() {
		v, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *Store) GetService(ctx context.Context, id int64) (*content.Service, error) {
	return scanService(s.db.QueryRowContext(ctx, "SELECT "+serviceCols+" FROM services WHERE id = ?", id))
}

func (s *Store) CreateService(ctx context.Context, v *content.Service) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO services(slug, title_en, title_ar, summary_en,
		summary_ar, icon, sort_order) VALUES(?,?,?,?,?,?,?)`,
		v.Slug, v.Title.En, v.Title.Ar, v.Summary.En, v.Summary.Ar, v.Icon, v.SortOrder)
	if err != nil {
		return mapErr(err)
	}
	v.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateService(ctx context.Context, v *content.Service) error {
	return mustAffect(s.db.ExecContext(ctx, `UPDATE services SET slug=?, title_en=?, title_ar=?,
		summary_en=?, summary_ar=?, icon=?, sort_order=? WHERE id=?`,
		v.Slug, v.Title.En, v.Title.Ar, v.Summary.En, v.Summary.Ar, v.Icon, v.SortOrder, v.ID))
}

func (s *Store) DeleteService(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, "DELETE FROM services WHERE id = ?", id))
}
