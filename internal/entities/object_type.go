package entities

import "fmt"

// ObjectType identifies the kind of tenant-owned record a rule or share applies to
type ObjectType string

const (
	ObjectTypeLead     ObjectType = "lead"
	ObjectTypeDeal     ObjectType = "deal"
	ObjectTypeAccount  ObjectType = "account"
	ObjectTypeContact  ObjectType = "contact"
	ObjectTypeActivity ObjectType = "activity"
)

// Validate checks that the object type is one of the known kinds
func (t ObjectType) Validate() error {
	switch t {
	case ObjectTypeLead, ObjectTypeDeal, ObjectTypeAccount, ObjectTypeContact, ObjectTypeActivity:
		return nil
	}
	return fmt.Errorf("unknown object type: %q", string(t))
}

// AccessLevel is the strength of access a rule or share grants
type AccessLevel string

const (
	AccessReadOnly  AccessLevel = "read_only"
	AccessReadWrite AccessLevel = "read_write"
)

// Validate checks that the access level is one of the known levels
func (l AccessLevel) Validate() error {
	switch l {
	case AccessReadOnly, AccessReadWrite:
		return nil
	}
	return fmt.Errorf("unknown access level: %q", string(l))
}
