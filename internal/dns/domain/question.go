package domain

import (
	"encoding/binary"
	"fmt"
)

// Question represents one entry of the question section: the name, type and class being asked for.
// Two questions are equal when all three fields are equal; the name comparison ignores ASCII case.
type Question struct {
	Name  Name
	Type  RRType
	Class RRClass
}

// NewQuestion constructs a Question from a presentation name and validates its fields.
func NewQuestion(name string, rrtype RRType, class RRClass) (Question, error) {
	n, err := ParseName(name)
	if err != nil {
		return Question{}, fmt.Errorf("invalid question name %q: %w", name, err)
	}
	q := Question{
		Name:  n,
		Type:  rrtype,
		Class: class,
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate checks whether the Question fields are structurally and semantically valid.
func (q Question) Validate() error {
	if err := q.Name.Validate(); err != nil {
		return err
	}
	if !q.Type.IsValid() {
		return fmt.Errorf("unsupported RRType: %d", q.Type)
	}
	if !q.Class.IsValid() {
		return fmt.Errorf("unsupported RRClass: %d", q.Class)
	}
	return nil
}

// Key returns a comparable cache key for the question.
// The name part is the canonical (lower-cased) length-prefixed label form, so it cannot
// collide across different label splits, followed by the big-endian type and class.
func (q Question) Key() string {
	var tail [4]byte
	binary.BigEndian.PutUint16(tail[0:2], uint16(q.Type))
	binary.BigEndian.PutUint16(tail[2:4], uint16(q.Class))
	return q.Name.Canonical().Key() + string(tail[:])
}

// Equal reports whether q and other ask the same question.
func (q Question) Equal(other Question) bool {
	return q.Type == other.Type && q.Class == other.Class && q.Name.Equal(other.Name)
}

// String returns a human readable form, e.g. "example.com. A IN".
func (q Question) String() string {
	return fmt.Sprintf("%s %s %s", q.Name.FQDN(), q.Type, q.Class)
}
