package domain

import "fmt"

// Message is a decoded DNS message.
// Raw holds the exact bytes the message was decoded from; it is nil for messages built in memory.
// Compression pointers inside record data refer to offsets within Raw.
type Message struct {
	Header     Header
	Questions  []Question
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
	Raw        []byte
}

// PrimaryQuestion returns the single question of a message.
// Messages carrying zero or several questions fail with ErrQuestionCount.
func (m Message) PrimaryQuestion() (Question, error) {
	if m.Header.QDCount != 1 || len(m.Questions) != 1 {
		return Question{}, fmt.Errorf("%w: qdcount=%d", ErrQuestionCount, m.Header.QDCount)
	}
	return m.Questions[0], nil
}

// IsResponse reports whether the QR bit is set.
func (m Message) IsResponse() bool {
	return m.Header.QR
}
