// Package upload stores admin uploads under the public uploads directory.
//
// Single uploads stream straight to a temp file and are renamed into place.
// Chunked uploads keep one directory per session under the temp dir
// (<tmp>/<id>/<index>.part plus meta.json) so a client can resume after a
// dropped connection or a server restart; the last chunk assembles the file
// and feeds it through the same register/transcode path.
package upload
