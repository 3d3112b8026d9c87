// Package web serves the public bilingual site, the JSON API and the admin
// CMS from one chi router.
//
// Public pages live under /{lang}/ (en or ar) and render server-side from
// the embedded templates with the matching text direction. The admin area
// under /admin/ uses a cookie session; /api/admin and /api/upload accept the
// same cookie or a Bearer token from /api/auth/login.
package web
