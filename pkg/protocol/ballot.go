package protocol

import (
	"encoding/json"
	"fmt"
)

// BallotChoice is one answer option of a ballot. Result carries the per
// participant vote counts once the creator discloses them.
type BallotChoice struct {
	ID         int    `json:"i"`
	Name       string `json:"n"`
	Order      int    `json:"o"`
	Result     []int  `json:"r"`
	TotalVotes int    `json:"t,omitempty"`
}

// VoteChoice is a single (choice id, selected) vote entry. On the wire it is
// a two-element JSON array [id, 0|1].
type VoteChoice struct {
	ChoiceID int
	Selected bool
}

func (v VoteChoice) MarshalJSON() ([]byte, error) {
	selected := 0
	if v.Selected {
		selected = 1
	}
	return json.Marshal([2]int{v.ChoiceID, selected})
}

func (v *VoteChoice) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: bad vote entry", ErrBadMessage)
	}
	v.ChoiceID = pair[0]
	v.Selected = pair[1] == 1
	return nil
}

// BallotCreateMessage opens or updates a ballot. The body is the 8-byte
// ballot id followed by a JSON object describing the ballot.
type BallotCreateMessage struct {
	BallotID          BallotID
	Description       string
	State             BallotState
	VotingMode        VotingMode
	ResultsDisclosure ResultsDisclosure
	Order             int
	DisplayMode       *DisplayMode
	Choices           []BallotChoice
	Participants      []Identity
}

// ballotCreateJSON is the wire form of the ballot description.
type ballotCreateJSON struct {
	Description       string            `json:"d"`
	State             BallotState       `json:"s"`
	VotingMode        VotingMode        `json:"a"`
	ResultsDisclosure ResultsDisclosure `json:"t"`
	Order             int               `json:"o"`
	DisplayMode       *DisplayMode      `json:"u,omitempty"`
	Choices           []BallotChoice    `json:"c"`
	Participants      []Identity        `json:"p,omitempty"`
}

func (m *BallotCreateMessage) TypeCode() byte { return TypeBallotCreate }

func (m *BallotCreateMessage) MarshalBody() ([]byte, error) {
	return m.marshalPayload()
}

func (m *BallotCreateMessage) marshalPayload() ([]byte, error) {
	if len(m.Choices) == 0 {
		return nil, fmt.Errorf("%w: ballot needs at least one choice", ErrInvalidInput)
	}
	doc, err := json.Marshal(ballotCreateJSON{
		Description:       m.Description,
		State:             m.State,
		VotingMode:        m.VotingMode,
		ResultsDisclosure: m.ResultsDisclosure,
		Order:             m.Order,
		DisplayMode:       m.DisplayMode,
		Choices:           m.Choices,
		Participants:      m.Participants,
	})
	if err != nil {
		return nil, err
	}
	buf := make([]byte, BallotIDLen+len(doc))
	copy(buf, m.BallotID[:])
	copy(buf[BallotIDLen:], doc)
	return buf, nil
}

func decodeBallotCreate(body []byte) (*BallotCreateMessage, error) {
	return parseBallotCreate(body)
}

func parseBallotCreate(body []byte) (*BallotCreateMessage, error) {
	if len(body) < BallotIDLen+2 {
		return nil, fmt.Errorf("%w: bad length %d for ballot create", ErrBadMessage, len(body))
	}
	m := &BallotCreateMessage{}
	copy(m.BallotID[:], body[:BallotIDLen])

	var doc ballotCreateJSON
	if err := json.Unmarshal(body[BallotIDLen:], &doc); err != nil {
		return nil, fmt.Errorf("%w: ballot create is not valid JSON", ErrBadMessage)
	}
	m.Description = doc.Description
	m.State = doc.State
	m.VotingMode = doc.VotingMode
	m.ResultsDisclosure = doc.ResultsDisclosure
	m.Order = doc.Order
	m.DisplayMode = doc.DisplayMode
	m.Choices = doc.Choices
	m.Participants = doc.Participants
	return m, nil
}

func marshalVotes(votes []VoteChoice) ([]byte, error) {
	if len(votes) == 0 {
		return nil, fmt.Errorf("%w: vote needs at least one choice", ErrInvalidInput)
	}
	return json.Marshal(votes)
}

func parseVotes(body []byte) ([]VoteChoice, error) {
	var votes []VoteChoice
	if err := json.Unmarshal(body, &votes); err != nil {
		return nil, fmt.Errorf("%w: votes are not a valid JSON array", ErrBadMessage)
	}
	return votes, nil
}
