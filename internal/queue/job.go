package queue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BuildJobType discriminates build jobs from other jobs sharing a tube.
const BuildJobType = "php-censor.build"

// ErrMalformedJob marks payloads that are not build jobs. They are never retried.
var ErrMalformedJob = errors.New("malformed job")

// BuildJob is the payload of a build job.
type BuildJob struct {
	Type    string `json:"type"`
	BuildID int64  `json:"build_id"`
}

// EncodeBuildJob serializes a build job for buildID.
func EncodeBuildJob(buildID int64) ([]byte, error) {
	if buildID <= 0 {
		return nil, fmt.Errorf("encode build job: invalid build id %d", buildID)
	}
	return json.Marshal(BuildJob{Type: BuildJobType, BuildID: buildID})
}

// DecodeBuildJob parses body. Anything other than a JSON object carrying the
// build job type and a positive integer build_id yields ErrMalformedJob.
func DecodeBuildJob(body []byte) (BuildJob, error) {
	var raw struct {
		Type    *string `json:"type"`
		BuildID *int64  `json:"build_id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return BuildJob{}, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	switch {
	case raw.Type == nil:
		return BuildJob{}, fmt.Errorf("%w: missing type", ErrMalformedJob)
	case *raw.Type != BuildJobType:
		return BuildJob{}, fmt.Errorf("%w: unexpected type %q", ErrMalformedJob, *raw.Type)
	case raw.BuildID == nil:
		return BuildJob{}, fmt.Errorf("%w: missing build_id", ErrMalformedJob)
	case *raw.BuildID <= 0:
		return BuildJob{}, fmt.Errorf("%w: invalid build_id %d", ErrMalformedJob, *raw.BuildID)
	}
	return BuildJob{Type: *raw.Type, BuildID: *raw.BuildID}, nil
}
