package domain

import "time"

// VoteTally is the outcome of a single accepted vote.
type VoteTally struct {
	ProfileID ProfileID `json:"profileId"`
	Count     int       `json:"count"`
}

// EndCheck reports whether a room has enough profiles to close voting.
type EndCheck struct {
	CanEnd       bool `json:"canEnd"`
	ProfileCount int  `json:"profileCount"`
	MinRequired  int  `json:"minRequired"`
}

// Results is the final outcome once voting has ended.
type Results struct {
	Winners           []Profile         `json:"winners"`
	FinalVotes        map[ProfileID]int `json:"finalVotes"`
	TotalParticipants int               `json:"totalParticipants"`
	TotalVotesCast    int               `json:"totalVotesCast"`
	IsTie             bool              `json:"isTie"`
}

// Winners returns the profiles sharing the highest count, in profile order.
func Winners(profiles []Profile, votes map[ProfileID]int) []Profile {
	var winners []Profile
	best := 0
	for i, p := range profiles {
		n := votes[p.ID]
		switch {
		case i == 0 || n > best:
			best = n
			winners = []Profile{p}
		case n == best:
			winners = append(winners, p)
		}
	}
	return winners
}

// RoomSnapshot is what a joining connection needs to render the room.
type RoomSnapshot struct {
	Code     RoomCode          `json:"code"`
	Phase    Phase             `json:"phase"`
	Profiles []Profile         `json:"profiles"`
	Votes    map[ProfileID]int `json:"votes"`
	Stats    RoomStats         `json:"stats"`
}

// ChatMessage is a relayed room chat line.
type ChatMessage struct {
	From   ConnID    `json:"connectionId"`
	Author string    `json:"author,omitempty"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}
