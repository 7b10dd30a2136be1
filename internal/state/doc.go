// Package state owns the durable daemon state persisted to the working
// directory (the /cache volume in container deployments). The on-disk file
// keeps the exact camelCase schema written by earlier panoptocord releases so
// existing cache files load unchanged: the announce watermark, the current
// OAuth token pair with its expiry, and the per-folder embed color map. Writes
// go through a temp file + rename so a crash mid-save never corrupts the only
// copy of the refresh token.
package state
