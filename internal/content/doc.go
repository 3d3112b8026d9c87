// Package content holds the bilingual domain model of the site (projects,
// posts, awards, team, services, pages, contact messages, media) and the
// Manager that validates and audits every change before it reaches the
// Repository.
package content
