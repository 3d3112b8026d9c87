package content

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

type Project struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Title     Localized `json:"title"`
	Summary   Localized `json:"summary"`
	Body      Localized `json:"body"`
	Category  string    `json:"category"`
	Location  Localized `json:"location"`
	Year      int       `json:"year,omitempty"`
	CoverURL  string    `json:"cover_url,omitempty"`
	VideoURL  string    `json:"video_url,omitempty"`
	Gallery   []string  `json:"gallery"`
	Featured  bool      `json:"featured"`
	Published bool      `json:"published"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Post struct {
	ID          int64      `json:"id"`
	Slug        string     `json:"slug"`
	Title       Localized  `json:"title"`
	Excerpt     Localized  `json:"excerpt"`
	Body        Localized  `json:"body"`
	CoverURL    string     `json:"cover_url,omitempty"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Award struct {
	ID          int64     `json:"id"`
	Title       Localized `json:"title"`
	Issuer      Localized `json:"issuer"`
	Year        int       `json:"year,omitempty"`
	ProjectSlug string    `json:"project_slug,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	SortOrder   int       `json:"sort_order"`
}

type TeamMember struct {
	ID        int64     `json:"id"`
	Name      Localized `json:"name"`
	Role      Localized `json:"role"`
	Bio       Localized `json:"bio"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	SortOrder int       `json:"sort_order"`
}

type Service struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Title     Localized `json:"title"`
	Summary   Localized `json:"summary"`
	Icon      string    `json:"icon,omitempty"`
	SortOrder int       `json:"sort_order"`
}

// Page keys for singleton page copy.
const (
	PageHome    = "home"
	PageAbout   = "about"
	PageContact = "contact"
)

// PageKeys lists the editable singleton pages.
var PageKeys = []string{PageHome, PageAbout, PageContact}

type Page struct {
	Key       string    `json:"key"`
	Title     Localized `json:"title"`
	Body      Localized `json:"body"`
	HeroURL   string    `json:"hero_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	Locale    Locale    `json:"locale"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type MediaStatus string

const (
	MediaReady      MediaStatus = "ready"
	MediaProcessing MediaStatus = "processing"
	MediaFailed     MediaStatus = "failed"
)

type Media struct {
	ID           int64       `json:"id"`
	Kind         MediaKind   `json:"kind"`
	URL          string      `json:"url"`
	OriginalName string      `json:"original_name"`
	Size         int64       `json:"size"`
	MimeType     string      `json:"mime_type"`
	Status       MediaStatus `json:"status"`
	PosterURL    string      `json:"poster_url,omitempty"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ListOptions filters list queries. Zero Limit means no limit.
type ListOptions struct {
	PublishedOnly bool
	FeaturedOnly  bool
	Category      string
	Limit         int
	Offset        int
}

// AuditEntry records one admin mutation.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"` // e.g. "project.update"
	Target string    `json:"target"` // e.g. "project:12"
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
}

// ChangeEvent is the payload of content.changed events.
type ChangeEvent struct {
	Kind   string `json:"kind"` // "project", "post", ...
	ID     int64  `json:"id,omitempty"`
	Key    string `json:"key,omitempty"`
	Action string `json:"action"` // "create" | "update" | "delete"
}
