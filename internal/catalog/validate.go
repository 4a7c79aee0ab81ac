package catalog

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	minSemester          = 1
	maxSemester          = 8
)

// CreateInput is the loosely typed creation payload. Fields are `any`
// so type errors surface as InvalidType instead of a decode failure,
// matching the wire contract.
type CreateInput struct {
	Title       any
	Description any
	Subject     any
	Semester    any
	Branch      any
	BlobID      any
	ExternalURL any
}

func (in CreateInput) isEmpty() bool {
	return in.Title == nil && in.Description == nil && in.Subject == nil &&
		in.Semester == nil && in.Branch == nil && in.BlobID == nil && in.ExternalURL == nil
}

// noteFields is the validated, trimmed form persisted by create/update.
type noteFields struct {
	Title       string
	Description string
	Subject     string
	Semester    int
	Branch      string
	BlobID      string
	ExternalURL string
}

func asString(value any) (string, bool) {
	text, ok := value.(string)
	return text, ok
}

// validateCreate runs the pipeline in contract order, short-circuiting
// on the first failure.
func validateCreate(in CreateInput) (noteFields, error) {
	if in.isEmpty() {
		return noteFields{}, FaultEmptyBody
	}

	for _, value := range []any{in.Title, in.Description, in.Subject} {
		if value == nil {
			continue
		}
		if _, ok := asString(value); !ok {
			return noteFields{}, FaultInvalidType
		}
	}

	title, _ := asString(in.Title)
	title = strings.TrimSpace(title)
	if title == "" {
		return noteFields{}, FaultTitleRequired
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return noteFields{}, FaultTitleTooLong
	}

	description, _ := asString(in.Description)
	description = strings.TrimSpace(description)
	if description == "" {
		return noteFields{}, FaultDescriptionRequired
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return noteFields{}, FaultDescriptionTooLong
	}

	subject, _ := asString(in.Subject)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return noteFields{}, FaultSubjectRequired
	}

	if in.Semester == nil {
		return noteFields{}, FaultSemesterRequired
	}
	semester, ok := parseSemester(in.Semester)
	if !ok {
		return noteFields{}, FaultInvalidSemester
	}

	branch := ""
	if in.Branch != nil {
		branch, _ = asString(in.Branch)
		branch = strings.TrimSpace(branch)
	}

	blobID := ""
	if in.BlobID != nil {
		blobID, _ = asString(in.BlobID)
		blobID = strings.TrimSpace(blobID)
	}
	externalURL := ""
	if in.ExternalURL != nil {
		externalURL, _ = asString(in.ExternalURL)
		externalURL = strings.TrimSpace(externalURL)
	}
	if blobID == "" && externalURL == "" {
		return noteFields{}, FaultFileRequired
	}

	return noteFields{
		Title:       title,
		Description: description,
		Subject:     subject,
		Semester:    semester,
		Branch:      branch,
		BlobID:      blobID,
		ExternalURL: externalURL,
	}, nil
}

// parseSemester accepts the shapes a JSON payload can carry an integer
// in: number, quoted digits, or json.Number.
func parseSemester(value any) (int, bool) {
	var semester int
	switch typed := value.(type) {
	case int:
		semester = typed
	case int64:
		semester = int(typed)
	case float64:
		if typed != math.Trunc(typed) {
			return 0, false
		}
		semester = int(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, false
		}
		semester = int(parsed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, false
		}
		semester = parsed
	default:
		return 0, false
	}
	if semester < minSemester || semester > maxSemester {
		return 0, false
	}
	return semester, true
}
