package types

import (
	"fmt"
	"time"
)

// StartTimeLayout is the wire format of scheduledStartTime as YouTube
// returns it. Version tags hash the raw string, so it is never reformatted
// between stages.
const StartTimeLayout = "2006-01-02T15:04:05Z"

// PostPurpose discriminates the two deferred-post variants. Using a tagged
// variant keeps the payload shape closed instead of growing ad hoc fields
// per flow.
type PostPurpose string

const (
	// PurposeStart is the rule armed at the scheduled start time.
	PurposeStart PostPurpose = "start"
	// PurposePreRoll is the reminder rule armed ahead of the start time.
	PurposePreRoll PostPurpose = "pre_roll"
)

// ScheduleDetected is the fan-out payload the change detector publishes
// when a previously unseen (title, scheduled start) pair is found. It is
// the JSON body of the "default" and "lambda" SNS message variants.
type ScheduleDetected struct {
	ChannelID          string `json:"channel_id"`
	VideoID            string `json:"video_id"`
	Version            string `json:"version"`
	Title              string `json:"title"`
	ScheduledStartTime string `json:"scheduled_start_time"`
	TraceID            string `json:"trace_id,omitempty"`
}

// StartTime parses the scheduled start time. The detector validates the
// format before publishing, so downstream stages treat a parse failure as
// a malformed message rather than an upstream error.
func (s ScheduleDetected) StartTime() (time.Time, error) {
	t, err := time.Parse(StartTimeLayout, s.ScheduledStartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scheduled_start_time %q: %w", s.ScheduledStartTime, err)
	}
	return t, nil
}

// DeferredPost is the payload captured at arm time and delivered back at
// fire time. It extends ScheduleDetected with the variant tag, the status
// text composed into the social post, and the name of the one-shot rule so
// the validator can tear its own timer down.
type DeferredPost struct {
	ScheduleDetected

	Purpose  PostPurpose `json:"purpose"`
	Status   string      `json:"status"`
	RuleName string      `json:"rule_name"`
}

// RuleName derives the deterministic one-shot rule name for a logical
// event. Arming the same (channel, video, purpose) twice overwrites the
// same rule instead of leaking a second one.
func RuleName(channelID, videoID string, purpose PostPurpose) string {
	return fmt.Sprintf("rul_%s_%s_%s", channelID, videoID, purpose)
}
