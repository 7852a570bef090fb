package api

import "strconv"

// ReplyCode is the numeric status in every reply envelope.
type ReplyCode int

const (
	ReplyOK                   ReplyCode = 0
	ReplyInternalError        ReplyCode = 1
	ReplyInvalidKeyField      ReplyCode = 2004
	ReplyMissingKeyField      ReplyCode = 2005
	ReplyContactNotFound      ReplyCode = 2008
	ReplyContactAlreadyExists ReplyCode = 2009
	ReplyNonUniqueResult      ReplyCode = 2010
	ReplyInvalidData          ReplyCode = 10001
)

var replyCodeNames = map[ReplyCode]string{
	ReplyOK:                   "OK",
	ReplyInternalError:        "internal error",
	ReplyInvalidKeyField:      "invalid key field",
	ReplyMissingKeyField:      "missing key field",
	ReplyContactNotFound:      "contact not found",
	ReplyContactAlreadyExists: "contact already exists",
	ReplyNonUniqueResult:      "non-unique result",
	ReplyInvalidData:          "invalid data",
}

func (c ReplyCode) String() string {
	if name, ok := replyCodeNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// Known reports whether c is one of the documented reply codes.
func (c ReplyCode) Known() bool {
	_, ok := replyCodeNames[c]
	return ok
}

// EmailStatus filters the email list.
type EmailStatus int

const (
	EmailInDesign    EmailStatus = 1
	EmailTested      EmailStatus = 2
	EmailLaunched    EmailStatus = 3
	EmailReady       EmailStatus = 4
	EmailDeactivated EmailStatus = -3
)

var emailStatusNames = map[EmailStatus]string{
	EmailInDesign:    "in-design",
	EmailTested:      "tested",
	EmailLaunched:    "launched",
	EmailReady:       "ready",
	EmailDeactivated: "deactivated",
}

func (s EmailStatus) String() string {
	if name, ok := emailStatusNames[s]; ok {
		return name
	}
	return strconv.Itoa(int(s))
}

func (s EmailStatus) Valid() bool {
	_, ok := emailStatusNames[s]
	return ok
}

// ParseEmailStatus accepts a status name or its numeric value.
func ParseEmailStatus(v string) (EmailStatus, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if s := EmailStatus(n); s.Valid() {
			return s, nil
		}
	}
	for s, name := range emailStatusNames {
		if name == v {
			return s, nil
		}
	}
	return 0, newClientError("invalid email status %q", v)
}

// EmailStatusNames lists the accepted status names.
func EmailStatusNames() []string {
	return []string{"in-design", "tested", "launched", "ready", "deactivated"}
}

// LaunchStatus is the launch state of an email.
type LaunchStatus int

const (
	LaunchNotLaunched LaunchStatus = 0
	LaunchInProgress  LaunchStatus = 1
	LaunchScheduled   LaunchStatus = 2
	LaunchError       LaunchStatus = -10
)

func (s LaunchStatus) String() string {
	switch s {
	case LaunchNotLaunched:
		return "not launched"
	case LaunchInProgress:
		return "in progress"
	case LaunchScheduled:
		return "scheduled"
	case LaunchError:
		return "error"
	default:
		return strconv.Itoa(int(s))
	}
}

func (s LaunchStatus) Valid() bool {
	switch s {
	case LaunchNotLaunched, LaunchInProgress, LaunchScheduled, LaunchError:
		return true
	}
	return false
}

// FieldType is the application_type of a custom contact field.
type FieldType string

const (
	FieldShortText    FieldType = "shorttext"
	FieldLongText     FieldType = "longtext"
	FieldLargeText    FieldType = "largetext"
	FieldDate         FieldType = "date"
	FieldURL          FieldType = "url"
	FieldNumeric      FieldType = "numeric"
	FieldSingleChoice FieldType = "singlechoice"
	FieldMultiChoice  FieldType = "multichoice"
)

// FieldTypes lists the creatable field types.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldShortText, FieldLongText, FieldLargeText, FieldDate,
		FieldURL, FieldNumeric, FieldSingleChoice, FieldMultiChoice,
	}
}

func (t FieldType) Valid() bool {
	for _, v := range FieldTypes() {
		if v == t {
			return true
		}
	}
	return false
}
