package content

import (
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"strings"
)

const (
	minYear = 1900
	maxYear = 2100

	maxNameLen    = 120
	maxMessageLen = 5000
)

// ValidationError lists invalid fields. It matches ErrInvalid with errors.Is.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

type validator map[string]string

func (v validator) add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}

func (v validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "required")
	}
}

func (v validator) url(field, value string) {
	if value != "" && !validURL(value) {
		v.add(field, "must be a /uploads/ path or an http(s) URL")
	}
}

func (v validator) year(field string, year int) {
	if year != 0 && (year < minYear || year > maxYear) {
		v.add(field, fmt.Sprintf("must be within %d..%d", minYear, maxYear))
	}
}

func (v validator) slug(field, value string) {
	if value != "" && !ValidSlug(value) {
		v.add(field, "must be lowercase letters, digits and hyphens")
	}
}

// validURL accepts site-relative paths and absolute http(s) URLs.
func validURL(s string) bool {
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return !strings.Contains(s, "..")
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateProject(p *Project) error {
	v := validator{}
	v.required("title.en", p.Title.En)
	v.slug("slug", p.Slug)
	v.year("year", p.Year)
	v.url("cover_url", p.CoverURL)
	v.url("video_url", p.VideoURL)
	for i, g := range p.Gallery {
		v.url(fmt.Sprintf("gallery[%d]", i), g)
	}
	return v.err()
}

func validatePost(p *Post) error {
	v := validator{}
	v.required("title.en", p.Title.En)
	v.slug("slug", p.Slug)
	v.url("cover_url", p.CoverURL)
	return v.err()
}

func validateAward(a *Award) error {
	v := validator{}
	v.required("title.en", a.Title.En)
	v.year("year", a.Year)
	v.url("image_url", a.ImageURL)
	v.slug("project_slug", a.ProjectSlug)
	return v.err()
}

func validateTeamMember(m *TeamMember) error {
	v := validator{}
	v.required("name.en", m.Name.En)
	v.url("photo_url", m.PhotoURL)
	return v.err()
}

func validateService(s *Service) error {
	v := validator{}
	v.required("title.en", s.Title.En)
	v.slug("slug", s.Slug)
	return v.err()
}

func validatePage(p *Page) error {
	v := validator{}
	if !validPageKey(p.Key) {
		v.add("key", "unknown page")
	}
	v.url("hero_url", p.HeroURL)
	return v.err()
}

func validPageKey(key string) bool {
	for _, k := range PageKeys {
		if k == key {
			return true
		}
	}
	return false
}

func validateContact(m *ContactMessage) error {
	v := validator{}
	v.required("name", m.Name)
	v.required("email", m.Email)
	v.required("message", m.Message)
	if len(m.Name) > maxNameLen {
		v.add("name", "too long")
	}
	if len(m.Message) > maxMessageLen {
		v.add("message", "too long")
	}
	if m.Email != "" {
		if a, err := mail.ParseAddress(m.Email); err != nil || a.Address != m.Email {
			v.add("email", "invalid address")
		}
	}
	return v.err()
}
