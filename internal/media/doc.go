// Package media turns uploaded videos into web-friendly MP4 files with a
// poster frame. Work runs on the task engine; the media row and every
// content reference switch to the new file only once it is fully written.
package media
