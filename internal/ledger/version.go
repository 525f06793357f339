// Package ledger implements the schedule version ledger: a two-row-per-video
// DynamoDB store recording what the system currently believes about a
// video's schedule, plus the content-derived version tag that keys it.
package ledger

import (
	"crypto/md5"
	"encoding/hex"
)

// versionSeparator joins the two fields that define "the schedule changed".
const versionSeparator = "-"

// ComputeVersion derives the deterministic version tag for a schedule
// state. The tag is a pure function of exactly (title, scheduledStartTime):
// a title edit or a reschedule produces a new tag, any other metadata edit
// is invisible. The same tag is computed at detection time (to dedupe) and
// compared at fire time (to detect staleness), so it must never depend on
// anything else.
func ComputeVersion(title, scheduledStartTime string) string {
	sum := md5.Sum([]byte(title + versionSeparator + scheduledStartTime))
	return hex.EncodeToString(sum[:])
}
