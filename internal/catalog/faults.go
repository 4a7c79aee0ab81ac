package catalog

import "github.com/studyshelf/studyshelf/internal/fault"

var (
	// FaultEmptyBody rejects a payload with no recognized fields at all.
	FaultEmptyBody = fault.Validation("EmptyBody", "request body is empty")
	// FaultInvalidType rejects non-string title/description/subject values.
	FaultInvalidType = fault.Validation("InvalidType", "title, description and subject must be strings")
	// FaultTitleRequired rejects a missing or whitespace-only title.
	FaultTitleRequired = fault.Validation("TitleRequired", "title is required")
	// FaultTitleTooLong rejects a trimmed title over 200 characters.
	FaultTitleTooLong = fault.Validation("TitleTooLong", "title must be at most 200 characters")
	// FaultDescriptionRequired rejects a missing or whitespace-only description.
	FaultDescriptionRequired = fault.Validation("DescriptionRequired", "description is required")
	// FaultDescriptionTooLong rejects a trimmed description over 5000 characters.
	FaultDescriptionTooLong = fault.Validation("DescriptionTooLong", "description must be at most 5000 characters")
	// FaultSubjectRequired rejects a missing or whitespace-only subject.
	FaultSubjectRequired = fault.Validation("SubjectRequired", "subject is required")
	// FaultSemesterRequired rejects a missing semester.
	FaultSemesterRequired = fault.Validation("SemesterRequired", "semester is required")
	// FaultInvalidSemester rejects a semester outside [1,8] or non-integral.
	FaultInvalidSemester = fault.Validation("InvalidSemester", "semester must be an integer between 1 and 8")
	// FaultFileRequired rejects a note with neither a blob id nor an external URL.
	FaultFileRequired = fault.Validation("FileRequired", "a file reference is required")
	// FaultDuplicateTitle signals the (title, subject, semester) tuple already exists.
	FaultDuplicateTitle = fault.Conflict("DuplicateTitle", "a note with this title, subject and semester already exists")
	// FaultNoteNotFound signals a well-formed note id with no record.
	FaultNoteNotFound = fault.NotFound("NoteNotFound", "note not found")
	// FaultInvalidNoteID signals a structurally invalid note id, distinct from absent.
	FaultInvalidNoteID = fault.Validation("InvalidNoteId", "note id is not a valid identifier")
	// FaultForbidden signals a caller who is neither the owner nor a moderator.
	FaultForbidden = fault.New(fault.ClassForbidden, "Forbidden", "not permitted for this note")
	// FaultInvalidPage rejects a page below 1.
	FaultInvalidPage = fault.Validation("InvalidPage", "page must be at least 1")
	// FaultInvalidLimit rejects a limit outside [1,100].
	FaultInvalidLimit = fault.Validation("InvalidLimit", "limit must be between 1 and 100")
	// FaultReasonRequired rejects a report with no reason.
	FaultReasonRequired = fault.Validation("ReasonRequired", "report reason is required")
)
